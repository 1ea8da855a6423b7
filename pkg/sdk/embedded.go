package sdk

import (
	"context"

	"github.com/celerix-dev/negmarket/internal/market"
	"github.com/celerix-dev/negmarket/pkg/schema"
)

// Embedded runs the marketplace inside the calling process. It implements
// Market.
type Embedded struct {
	coord *market.Coordinator
}

// NewEmbedded wraps a coordinator.
func NewEmbedded(c *market.Coordinator) *Embedded {
	return &Embedded{coord: c}
}

// Coordinator exposes the wrapped coordinator.
func (e *Embedded) Coordinator() *market.Coordinator {
	return e.coord
}

func (e *Embedded) Search(_ context.Context, q schema.Query) ([]schema.Listing, error) {
	return e.coord.Search(q), nil
}

func (e *Embedded) Listing(_ context.Context, id string) (schema.Listing, error) {
	return e.coord.Listing(id)
}

func (e *Embedded) Featured(_ context.Context) ([]schema.Listing, error) {
	return e.coord.Featured(), nil
}

func (e *Embedded) Account(_ context.Context, id string) (schema.Account, error) {
	return e.coord.Account(id)
}

func (e *Embedded) Summary(_ context.Context, id string) (schema.AccountSummary, error) {
	return e.coord.Summary(id)
}

func (e *Embedded) Purchase(ctx context.Context, accountID, listingID string) (schema.PurchaseResult, error) {
	return e.coord.Purchase(ctx, accountID, listingID)
}

func (e *Embedded) SubmitUpload(ctx context.Context, accountID string, draft schema.UploadDraft) (schema.UploadOutcome, error) {
	return e.coord.SubmitUpload(ctx, accountID, draft)
}

func (e *Embedded) Notification(_ context.Context) (schema.Notification, bool, error) {
	n, ok := e.coord.Notification()
	return n, ok, nil
}

// For returns a scope pinned to accountID.
func (e *Embedded) For(accountID string) AccountScope {
	return newScope(e, accountID)
}

// Close cancels pending uploads and stops the notification timer.
func (e *Embedded) Close() error {
	e.coord.Close()
	return nil
}
