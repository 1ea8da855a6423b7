// Package engine holds the session state of the marketplace: the catalog,
// the accounts, and the state transitions that purchases and uploads apply.
package engine

import (
	"errors"
	"fmt"
)

// Standard errors for the engine.
var (
	// ErrInsufficientCredits matches every *InsufficientCreditsError.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrListingNotFound is returned when a listing ID is not in the catalog.
	ErrListingNotFound = errors.New("listing not found")
	// ErrAccountNotFound is returned when an account ID is not in the session.
	ErrAccountNotFound = errors.New("account not found")
)

// InsufficientCreditsError is the only domain error of a purchase. Nothing is
// applied when it is returned.
type InsufficientCreditsError struct {
	ListingID string
	Balance   int64
	Price     int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: balance %d, %s costs %d", e.Balance, e.ListingID, e.Price)
}

// Is lets errors.Is match against ErrInsufficientCredits.
func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

// DefaultAccount is the ID of the account seeded at session start.
const DefaultAccount = "user_demo_01"
