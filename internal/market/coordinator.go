// Package market wires the session store to the notification emitter. It is
// the one place where a state transition and its user-visible feedback meet.
package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/celerix-dev/negmarket/internal/logger"
	"github.com/celerix-dev/negmarket/internal/metrics"
	"github.com/celerix-dev/negmarket/internal/notify"
	"github.com/celerix-dev/negmarket/pkg/engine"
	"github.com/celerix-dev/negmarket/pkg/schema"
)

// DefaultUploadDelay is the simulated processing time of an upload.
const DefaultUploadDelay = 2000 * time.Millisecond

// PendingPrefix starts the ID of every uploaded listing.
const PendingPrefix = "pending_"

var (
	// ErrUploadCanceled is reported by a task cancelled before it applied.
	ErrUploadCanceled = errors.New("upload canceled")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("coordinator closed")
)

// Coordinator runs purchases and uploads against a MemStore and reports
// their outcome through an Emitter.
type Coordinator struct {
	store   *engine.MemStore
	emitter *notify.Emitter
	log     logger.Logger
	metrics *metrics.Metrics
	delay   time.Duration

	mu     sync.Mutex
	tasks  map[string]*UploadTask
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logger.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithMetrics records outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithUploadDelay overrides DefaultUploadDelay. Zero applies uploads on the
// next scheduler tick.
func WithUploadDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// New returns a coordinator over store and emitter.
func New(store *engine.MemStore, emitter *notify.Emitter, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   store,
		emitter: emitter,
		log:     logger.NewNop(),
		delay:   DefaultUploadDelay,
		tasks:   make(map[string]*UploadTask),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --- Reads ---

// Search filters the catalog.
func (c *Coordinator) Search(q schema.Query) []schema.Listing {
	hits := c.store.Search(q)
	if c.metrics != nil {
		c.metrics.SearchResults.Observe(float64(len(hits)))
	}
	return hits
}

func (c *Coordinator) Listing(id string) (schema.Listing, error) {
	return c.store.Listing(id)
}

func (c *Coordinator) Featured() []schema.Listing {
	return c.store.Featured()
}

func (c *Coordinator) Account(id string) (schema.Account, error) {
	return c.store.Account(id)
}

// Summary returns the dashboard figures of an account.
func (c *Coordinator) Summary(id string) (schema.AccountSummary, error) {
	acct, err := c.store.Account(id)
	if err != nil {
		return schema.AccountSummary{}, err
	}
	return acct.Summarize(), nil
}

// Notification returns the visible notification, if any.
func (c *Coordinator) Notification() (schema.Notification, bool) {
	return c.emitter.Current()
}

// --- Purchases ---

// Purchase buys a listing for an account. Success and insufficient credits
// both raise a notification; lookup failures do not.
func (c *Coordinator) Purchase(ctx context.Context, accountID, listingID string) (schema.PurchaseResult, error) {
	if err := ctx.Err(); err != nil {
		return schema.PurchaseResult{}, err
	}

	res, err := c.store.Purchase(accountID, listingID)
	switch {
	case err == nil:
		c.emit(c.emitter.Success(schema.KeyPurchaseSuccess, res.Listing.Title))
		c.countPurchase(metrics.OutcomeSuccess)
		if c.metrics != nil {
			c.metrics.CreditsSpent.Add(float64(res.Record.Price))
		}
		c.log.Info("Purchase completed",
			logger.String("account", accountID),
			logger.String("listing", listingID),
			logger.Int64("price", res.Record.Price),
			logger.Int64("balance", res.Account.Credits),
		)
		return res, nil

	case errors.Is(err, engine.ErrInsufficientCredits):
		c.emit(c.emitter.Error(schema.KeyInsufficientCredits, ""))
		c.countPurchase(metrics.OutcomeInsufficient)
		c.log.Info("Purchase rejected",
			logger.String("account", accountID),
			logger.String("listing", listingID),
			logger.Error(err),
		)
		return schema.PurchaseResult{}, err

	case errors.Is(err, engine.ErrAccountNotFound), errors.Is(err, engine.ErrListingNotFound):
		c.countPurchase(metrics.OutcomeNotFound)
		return schema.PurchaseResult{}, err

	default:
		c.countPurchase(metrics.OutcomeError)
		return schema.PurchaseResult{}, fmt.Errorf("purchase %s: %w", listingID, err)
	}
}

// --- Uploads ---

// StartUpload schedules an upload for an account and returns at once. The
// draft is applied after the processing delay unless the task, ctx or the
// coordinator is cancelled first.
func (c *Coordinator) StartUpload(ctx context.Context, accountID string, draft schema.UploadDraft) (*UploadTask, error) {
	if _, err := c.store.Account(accountID); err != nil {
		c.countUpload(metrics.OutcomeNotFound)
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	taskCtx, cancel := context.WithCancel(ctx)
	t := &UploadTask{
		ID:        PendingPrefix + uuid.NewString(),
		AccountID: accountID,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	c.tasks[t.ID] = t
	c.wg.Add(1)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.UploadsInFlight.Inc()
	}
	c.log.Debug("Upload scheduled",
		logger.String("account", accountID),
		logger.String("listing", t.ID),
		logger.Duration("delay", c.delay),
	)

	go c.runUpload(taskCtx, t, draft)
	return t, nil
}

// SubmitUpload starts an upload and waits for it.
func (c *Coordinator) SubmitUpload(ctx context.Context, accountID string, draft schema.UploadDraft) (schema.UploadOutcome, error) {
	t, err := c.StartUpload(ctx, accountID, draft)
	if err != nil {
		return schema.UploadOutcome{}, err
	}
	return t.Wait(ctx)
}

// Pending lists the IDs of uploads still waiting to apply.
func (c *Coordinator) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.tasks))
	for id := range c.tasks {
		ids = append(ids, id)
	}
	return ids
}

// Cancel aborts a pending upload by ID. It reports whether the task existed.
func (c *Coordinator) Cancel(id string) bool {
	c.mu.Lock()
	t, ok := c.tasks[id]
	c.mu.Unlock()
	if ok {
		t.Cancel()
	}
	return ok
}

// Wait blocks until every upload task has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close refuses new uploads, cancels the pending ones and waits for them.
// The emitter is stopped last.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	pending := make([]*UploadTask, 0, len(c.tasks))
	for _, t := range c.tasks {
		pending = append(pending, t)
	}
	c.mu.Unlock()

	for _, t := range pending {
		t.Cancel()
	}
	c.wg.Wait()
	c.emitter.Stop()
}

func (c *Coordinator) runUpload(ctx context.Context, t *UploadTask, draft schema.UploadDraft) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		delete(c.tasks, t.ID)
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.UploadsInFlight.Dec()
		}
		close(t.done)
	}()

	timer := time.NewTimer(c.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		t.err = ErrUploadCanceled
		c.countUpload(metrics.OutcomeCanceled)
		c.log.Info("Upload canceled", logger.String("listing", t.ID))
		return
	case <-timer.C:
	}

	out, err := c.store.AddUpload(t.AccountID, draft, t.ID)
	if err != nil {
		t.err = err
		c.countUpload(metrics.OutcomeError)
		c.log.Error("Upload failed", logger.String("listing", t.ID), logger.Error(err))
		return
	}
	t.outcome = out

	c.emit(c.emitter.Success(schema.KeyUploadSuccess, ""))
	c.countUpload(metrics.OutcomeSuccess)
	c.log.Info("Upload submitted",
		logger.String("account", t.AccountID),
		logger.String("listing", t.ID),
		logger.String("title", out.Listing.Title),
	)
}

func (c *Coordinator) emit(n schema.Notification) {
	if c.metrics != nil {
		c.metrics.Notifications.WithLabelValues(string(n.Severity)).Inc()
	}
}

func (c *Coordinator) countPurchase(outcome string) {
	if c.metrics != nil {
		c.metrics.Purchases.WithLabelValues(outcome).Inc()
	}
}

func (c *Coordinator) countUpload(outcome string) {
	if c.metrics != nil {
		c.metrics.Uploads.WithLabelValues(outcome).Inc()
	}
}
