package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/celerix-dev/negmarket/internal/filter"
	"github.com/celerix-dev/negmarket/pkg/schema"
)

// MemStore is the thread-safe session state: the catalog and the accounts.
// Listings are immutable apart from their download counter, which only
// Purchase changes.
type MemStore struct {
	mu       sync.RWMutex
	catalog  []schema.Listing
	index    map[string]int
	accounts map[string]*schema.Account
	now      func() time.Time
}

// NewMemStore initializes a store with a catalog and the session accounts.
// Listings with a duplicate ID after the first are dropped.
func NewMemStore(catalog []schema.Listing, accounts ...schema.Account) *MemStore {
	m := &MemStore{
		catalog:  make([]schema.Listing, 0, len(catalog)),
		index:    make(map[string]int, len(catalog)),
		accounts: make(map[string]*schema.Account, len(accounts)),
		now:      time.Now,
	}
	for _, l := range catalog {
		if _, dup := m.index[l.ID]; dup {
			continue
		}
		m.index[l.ID] = len(m.catalog)
		m.catalog = append(m.catalog, l.Clone())
	}
	for _, a := range accounts {
		acct := a.Clone()
		m.accounts[a.ID] = &acct
	}
	return m
}

// SetClock replaces the clock used to date receipts. Intended for tests.
func (m *MemStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// --- Catalog ---

// Listings returns a copy of the whole catalog in seed order.
func (m *MemStore) Listings() []schema.Listing {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]schema.Listing, len(m.catalog))
	for i, l := range m.catalog {
		out[i] = l.Clone()
	}
	return out
}

// Listing returns a copy of one listing.
func (m *MemStore) Listing(id string) (schema.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.index[id]
	if !ok {
		return schema.Listing{}, fmt.Errorf("%w: %s", ErrListingNotFound, id)
	}
	return m.catalog[i].Clone(), nil
}

// Search runs the marketplace filter against the current catalog.
func (m *MemStore) Search(q schema.Query) []schema.Listing {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := filter.Apply(m.catalog, q)
	for i := range hits {
		hits[i] = hits[i].Clone()
	}
	return hits
}

// Featured returns the featured listings in seed order.
func (m *MemStore) Featured() []schema.Listing {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := filter.Featured(m.catalog)
	for i := range hits {
		hits[i] = hits[i].Clone()
	}
	return hits
}

// --- Accounts ---

// PutAccount creates or replaces a session account.
func (m *MemStore) PutAccount(a schema.Account) {
	acct := a.Clone()
	m.mu.Lock()
	m.accounts[a.ID] = &acct
	m.mu.Unlock()
}

// Account returns a deep copy of one account.
func (m *MemStore) Account(id string) (schema.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return schema.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return a.Clone(), nil
}

// Accounts lists the session account IDs, sorted.
func (m *MemStore) Accounts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		list = append(list, id)
	}
	sort.Strings(list)
	return list
}

// --- Transitions ---

// Purchase applies ApplyPurchase under a single write lock, so the debit and
// the download increment become visible together or not at all.
func (m *MemStore) Purchase(accountID, listingID string) (schema.PurchaseResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[accountID]
	if !ok {
		return schema.PurchaseResult{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	i, ok := m.index[listingID]
	if !ok {
		return schema.PurchaseResult{}, fmt.Errorf("%w: %s", ErrListingNotFound, listingID)
	}

	nextAcct, nextListing, record, err := ApplyPurchase(*acct, m.catalog[i], m.now().Format(time.DateOnly))
	if err != nil {
		return schema.PurchaseResult{}, err
	}

	*acct = nextAcct
	m.catalog[i] = nextListing

	return schema.PurchaseResult{
		Account: nextAcct.Clone(),
		Listing: nextListing.Clone(),
		Record:  record,
	}, nil
}

// AddUpload applies ApplyUpload to an account. The new listing joins the
// account's uploads only; the public catalog is unchanged until review.
func (m *MemStore) AddUpload(accountID string, draft schema.UploadDraft, listingID string) (schema.UploadOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[accountID]
	if !ok {
		return schema.UploadOutcome{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}

	next, listing := ApplyUpload(*acct, draft, listingID, m.now().Format(time.DateOnly))
	*acct = next

	return schema.UploadOutcome{
		Account:  next.Clone(),
		Listing:  listing,
		NextView: schema.ViewDashboard,
	}, nil
}
