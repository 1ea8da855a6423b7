package market

import (
	"context"

	"github.com/celerix-dev/negmarket/pkg/schema"
)

// UploadTask is one scheduled upload. Its ID is the ID the listing gets once
// applied.
type UploadTask struct {
	ID        string
	AccountID string

	cancel  context.CancelFunc
	done    chan struct{}
	outcome schema.UploadOutcome
	err     error
}

// Done is closed when the task has applied, failed or been cancelled.
func (t *UploadTask) Done() <-chan struct{} {
	return t.done
}

// Cancel aborts the task if it has not applied yet. Cancelling a finished
// task does nothing.
func (t *UploadTask) Cancel() {
	t.cancel()
}

// Wait blocks until the task finishes or ctx ends. A ctx that ends first
// does not cancel the task.
func (t *UploadTask) Wait(ctx context.Context) (schema.UploadOutcome, error) {
	select {
	case <-t.done:
		return t.outcome, t.err
	case <-ctx.Done():
		return schema.UploadOutcome{}, ctx.Err()
	}
}
