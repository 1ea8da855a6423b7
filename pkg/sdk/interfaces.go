package sdk

import (
	"context"

	"github.com/celerix-dev/negmarket/pkg/schema"
)

// --- Functional Interfaces (Interface Segregation) ---

// Searcher runs marketplace queries.
type Searcher interface {
	Search(ctx context.Context, q schema.Query) ([]schema.Listing, error)
}

// CatalogReader reads individual listings and the landing selection.
type CatalogReader interface {
	Listing(ctx context.Context, id string) (schema.Listing, error)
	Featured(ctx context.Context) ([]schema.Listing, error)
}

// AccountReader reads session accounts.
type AccountReader interface {
	Account(ctx context.Context, id string) (schema.Account, error)
	Summary(ctx context.Context, id string) (schema.AccountSummary, error)
}

// Purchaser buys listings.
type Purchaser interface {
	Purchase(ctx context.Context, accountID, listingID string) (schema.PurchaseResult, error)
}

// Uploader submits negative-result experiments and waits for them to apply.
type Uploader interface {
	SubmitUpload(ctx context.Context, accountID string, draft schema.UploadDraft) (schema.UploadOutcome, error)
}

// NotificationReader reads the transient status message. The bool is false
// when nothing is showing.
type NotificationReader interface {
	Notification(ctx context.Context) (schema.Notification, bool, error)
}

// --- Composite Interfaces ---

// Market is the primary interface of the marketplace, local or remote.
type Market interface {
	Searcher
	CatalogReader
	AccountReader
	Purchaser
	Uploader
	NotificationReader

	// For returns an AccountScope that pins an account ID.
	For(accountID string) AccountScope

	Close() error
}

// AccountScope is a Market view bound to one account.
type AccountScope interface {
	Account(ctx context.Context) (schema.Account, error)
	Summary(ctx context.Context) (schema.AccountSummary, error)
	Purchase(ctx context.Context, listingID string) (schema.PurchaseResult, error)
	Upload(ctx context.Context, draft schema.UploadDraft) (schema.UploadOutcome, error)
}

// scope implements AccountScope over any Market.
type scope struct {
	market    Market
	accountID string
}

func newScope(m Market, accountID string) AccountScope {
	return &scope{market: m, accountID: accountID}
}

func (s *scope) Account(ctx context.Context) (schema.Account, error) {
	return s.market.Account(ctx, s.accountID)
}

func (s *scope) Summary(ctx context.Context) (schema.AccountSummary, error) {
	return s.market.Summary(ctx, s.accountID)
}

func (s *scope) Purchase(ctx context.Context, listingID string) (schema.PurchaseResult, error) {
	return s.market.Purchase(ctx, s.accountID, listingID)
}

func (s *scope) Upload(ctx context.Context, draft schema.UploadDraft) (schema.UploadOutcome, error) {
	return s.market.SubmitUpload(ctx, s.accountID, draft)
}
