package engine

import (
	"fmt"

	"github.com/celerix-dev/negmarket/pkg/schema"
)

// Source supplies the initial session state. The seed generator and
// fixtures in tests implement it.
type Source interface {
	Catalog() ([]schema.Listing, error)
	Accounts() ([]schema.Account, error)
}

// Seed builds a MemStore from src. Every listing is validated first, so a
// store never starts with a negative price or an out-of-range confidence.
func Seed(src Source) (*MemStore, error) {
	// 1. Pull and check the catalog
	catalog, err := src.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	for _, l := range catalog {
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("invalid seed listing: %w", err)
		}
	}

	// 2. Pull the session accounts
	accounts, err := src.Accounts()
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	for _, a := range accounts {
		if a.Credits < 0 {
			return nil, fmt.Errorf("invalid seed account %s: negative balance %d", a.ID, a.Credits)
		}
	}

	return NewMemStore(catalog, accounts...), nil
}
