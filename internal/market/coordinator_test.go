package market

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celerix-dev/negmarket/internal/metrics"
	"github.com/celerix-dev/negmarket/internal/notify"
	"github.com/celerix-dev/negmarket/pkg/engine"
	"github.com/celerix-dev/negmarket/pkg/schema"
)

func testCatalog() []schema.Listing {
	return []schema.Listing{
		{ID: "exp_001", Title: "Mpro Inhibitor Screen", Category: schema.CategoryAntiviral, Price: 15000, Downloads: 12, Featured: true, Tags: []string{"protease_inhibitor"}},
		{ID: "exp_002", Title: "Cathode Fade", Category: schema.CategoryBattery, Price: 40000},
	}
}

func testAccount(credits int64) schema.Account {
	return schema.Account{ID: engine.DefaultAccount, Name: "Dr. Demo Researcher", Credits: credits}
}

func newTestCoordinator(t *testing.T, credits int64, opts ...Option) (*Coordinator, *notify.Emitter) {
	t.Helper()
	store := engine.NewMemStore(testCatalog(), testAccount(credits))
	store.SetClock(func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) })
	em := notify.NewEmitter(time.Minute)
	c := New(store, em, opts...)
	t.Cleanup(c.Close)
	return c, em
}

func TestPurchase_SuccessNotifies(t *testing.T) {
	m := metrics.New()
	c, _ := newTestCoordinator(t, 25000, WithMetrics(m))

	res, err := c.Purchase(context.Background(), engine.DefaultAccount, "exp_001")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), res.Account.Credits)
	assert.Equal(t, "2026-03-01", res.Record.Date)

	n, ok := c.Notification()
	require.True(t, ok)
	assert.Equal(t, schema.KeyPurchaseSuccess, n.Key)
	assert.Equal(t, "Mpro Inhibitor Screen", n.Subject)
	assert.Equal(t, schema.SeveritySuccess, n.Severity)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Purchases.WithLabelValues(metrics.OutcomeSuccess)))
	assert.Equal(t, 15000.0, testutil.ToFloat64(m.CreditsSpent))
}

func TestPurchase_InsufficientNotifiesError(t *testing.T) {
	m := metrics.New()
	c, _ := newTestCoordinator(t, 25000, WithMetrics(m))

	_, err := c.Purchase(context.Background(), engine.DefaultAccount, "exp_002")
	require.ErrorIs(t, err, engine.ErrInsufficientCredits)

	var ice *engine.InsufficientCreditsError
	require.True(t, errors.As(err, &ice))
	assert.Equal(t, int64(25000), ice.Balance)
	assert.Equal(t, int64(40000), ice.Price)

	n, ok := c.Notification()
	require.True(t, ok)
	assert.Equal(t, schema.KeyInsufficientCredits, n.Key)
	assert.Equal(t, schema.SeverityError, n.Severity)

	acct, _ := c.Account(engine.DefaultAccount)
	assert.Equal(t, int64(25000), acct.Credits)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Purchases.WithLabelValues(metrics.OutcomeInsufficient)))
}

func TestPurchase_NotFoundIsSilent(t *testing.T) {
	c, _ := newTestCoordinator(t, 25000)

	_, err := c.Purchase(context.Background(), engine.DefaultAccount, "exp_404")
	require.ErrorIs(t, err, engine.ErrListingNotFound)
	_, err = c.Purchase(context.Background(), "nobody", "exp_001")
	require.ErrorIs(t, err, engine.ErrAccountNotFound)

	_, ok := c.Notification()
	assert.False(t, ok)
}

func TestPurchase_CanceledContext(t *testing.T) {
	c, _ := newTestCoordinator(t, 25000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Purchase(ctx, engine.DefaultAccount, "exp_001")
	require.ErrorIs(t, err, context.Canceled)

	acct, _ := c.Account(engine.DefaultAccount)
	assert.Equal(t, int64(25000), acct.Credits)
}

func TestSummary(t *testing.T) {
	c, _ := newTestCoordinator(t, 25000)
	_, err := c.Purchase(context.Background(), engine.DefaultAccount, "exp_001")
	require.NoError(t, err)

	sum, err := c.Summary(engine.DefaultAccount)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), sum.Balance)
	assert.Equal(t, 1, sum.Purchases)
	assert.Equal(t, int64(15000), sum.TotalSpent)

	_, err = c.Summary("nobody")
	assert.ErrorIs(t, err, engine.ErrAccountNotFound)
}

func TestSearch_RecordsResultSize(t *testing.T) {
	m := metrics.New()
	c, _ := newTestCoordinator(t, 0, WithMetrics(m))

	hits := c.Search(schema.Query{Text: "protease", PriceCeiling: 50000})
	require.Len(t, hits, 1)
	assert.Equal(t, 1, testutil.CollectAndCount(m.SearchResults))
}

func TestSubmitUpload_AppliesAfterDelay(t *testing.T) {
	c, _ := newTestCoordinator(t, 25000, WithUploadDelay(10*time.Millisecond))

	out, err := c.SubmitUpload(context.Background(), engine.DefaultAccount, schema.UploadDraft{
		Title:    "Failed KRAS degrader",
		Category: schema.CategoryOncology,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Listing.ID, PendingPrefix))
	assert.Equal(t, "Failed KRAS degrader", out.Listing.Title)
	assert.Equal(t, schema.VerificationPending, out.Listing.Verification)
	assert.Equal(t, schema.ViewDashboard, out.NextView)

	acct, _ := c.Account(engine.DefaultAccount)
	require.Len(t, acct.Uploads, 1)
	assert.Equal(t, out.Listing.ID, acct.Uploads[0].ID)

	n, ok := c.Notification()
	require.True(t, ok)
	assert.Equal(t, schema.KeyUploadSuccess, n.Key)

	_, err = c.Listing(out.Listing.ID)
	assert.ErrorIs(t, err, engine.ErrListingNotFound)
}

func TestStartUpload_NothingBeforeDelay(t *testing.T) {
	c, _ := newTestCoordinator(t, 25000, WithUploadDelay(time.Hour))

	task, err := c.StartUpload(context.Background(), engine.DefaultAccount, schema.UploadDraft{})
	require.NoError(t, err)
	assert.Equal(t, []string{task.ID}, c.Pending())

	acct, _ := c.Account(engine.DefaultAccount)
	assert.Empty(t, acct.Uploads)
	_, ok := c.Notification()
	assert.False(t, ok)

	task.Cancel()
	<-task.Done()
	_, err = task.Wait(context.Background())
	assert.ErrorIs(t, err, ErrUploadCanceled)
	assert.Empty(t, c.Pending())

	acct, _ = c.Account(engine.DefaultAccount)
	assert.Empty(t, acct.Uploads)
}

func TestCancelByID(t *testing.T) {
	m := metrics.New()
	c, _ := newTestCoordinator(t, 25000, WithUploadDelay(time.Hour), WithMetrics(m))

	task, err := c.StartUpload(context.Background(), engine.DefaultAccount, schema.UploadDraft{})
	require.NoError(t, err)

	assert.True(t, c.Cancel(task.ID))
	assert.False(t, c.Cancel("pending_unknown"))
	<-task.Done()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues(metrics.OutcomeCanceled)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.UploadsInFlight))
}

func TestStartUpload_UnknownAccount(t *testing.T) {
	c, _ := newTestCoordinator(t, 25000)

	_, err := c.StartUpload(context.Background(), "nobody", schema.UploadDraft{})
	assert.ErrorIs(t, err, engine.ErrAccountNotFound)
}

func TestConcurrentUploads_AllApply(t *testing.T) {
	c, _ := newTestCoordinator(t, 25000, WithUploadDelay(5*time.Millisecond))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.SubmitUpload(context.Background(), engine.DefaultAccount, schema.UploadDraft{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	c.Wait()

	acct, _ := c.Account(engine.DefaultAccount)
	require.Len(t, acct.Uploads, 10)

	ids := map[string]bool{}
	for _, u := range acct.Uploads {
		ids[u.ID] = true
	}
	assert.Len(t, ids, 10)
}

func TestClose_CancelsPendingAndRefusesNew(t *testing.T) {
	store := engine.NewMemStore(testCatalog(), testAccount(0))
	c := New(store, notify.NewEmitter(0), WithUploadDelay(time.Hour))

	task, err := c.StartUpload(context.Background(), engine.DefaultAccount, schema.UploadDraft{})
	require.NoError(t, err)

	c.Close()

	select {
	case <-task.Done():
	default:
		t.Fatal("task still pending after Close")
	}
	_, err = task.Wait(context.Background())
	assert.ErrorIs(t, err, ErrUploadCanceled)

	_, err = c.StartUpload(context.Background(), engine.DefaultAccount, schema.UploadDraft{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWait_ContextEndsFirst(t *testing.T) {
	c, _ := newTestCoordinator(t, 25000, WithUploadDelay(time.Hour))

	task, err := c.StartUpload(context.Background(), engine.DefaultAccount, schema.UploadDraft{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = task.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, []string{task.ID}, c.Pending())
}
