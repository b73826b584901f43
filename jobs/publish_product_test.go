package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/catalog/internal/jobs"
	"github.com/odyssey-erp/catalog/internal/products"
)

type fakeReconciler struct {
	calls []products.Request
	res   products.Result
	err   error
}

func (f *fakeReconciler) Reconcile(ctx context.Context, req products.Request) (products.Result, error) {
	f.calls = append(f.calls, req)
	return f.res, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func publishTask(t *testing.T, draftID int64, code string) *asynq.Task {
	t.Helper()
	task, err := NewPublishProductTask(PublishProductPayload{DraftID: draftID, Code: code})
	require.NoError(t, err)
	return task
}

func TestNewPublishProductTaskAssignsCorrelationID(t *testing.T) {
	task := publishTask(t, 7, "000007")
	require.Equal(t, TaskPublishProduct, task.Type())

	var payload PublishProductPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, int64(7), payload.DraftID)
	require.Equal(t, "000007", payload.Code)
	require.NotEmpty(t, payload.CorrelationID)

	_, err := NewPublishProductTask(PublishProductPayload{DraftID: 7})
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestPublishProductJobRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	rec := &fakeReconciler{res: products.Result{
		Outcome: products.OutcomeCreated,
		Product: products.Product{ID: 3, Code: "000007"},
	}}
	job := NewPublishProductJob(rec, quietLogger(), metrics)

	require.NoError(t, job.Handle(context.Background(), publishTask(t, 7, "000007")))
	require.Equal(t, []products.Request{{DraftID: 7, Code: "000007"}}, rec.calls)

	outcomes, err := testutil.GatherAndCount(reg, "catalog_reconcile_outcomes_total")
	require.NoError(t, err)
	require.Equal(t, 1, outcomes)
	runs, err := testutil.GatherAndCount(reg, "catalog_jobs_total")
	require.NoError(t, err)
	require.Equal(t, 1, runs)
}

func TestPublishProductJobSkipsUnpublishedDraft(t *testing.T) {
	rec := &fakeReconciler{err: products.ErrDraftNotPublished}
	job := NewPublishProductJob(rec, quietLogger(), nil)

	require.NoError(t, job.Handle(context.Background(), publishTask(t, 7, "000007")))
	require.Len(t, rec.calls, 1)
}

func TestPublishProductJobReturnsRetryableError(t *testing.T) {
	boom := errors.New("database unavailable")
	rec := &fakeReconciler{err: boom}
	job := NewPublishProductJob(rec, quietLogger(), nil)

	err := job.Handle(context.Background(), publishTask(t, 7, "000007"))
	require.ErrorIs(t, err, boom)
	require.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestPublishProductJobDiscardsMalformedPayload(t *testing.T) {
	rec := &fakeReconciler{}
	job := NewPublishProductJob(rec, quietLogger(), nil)

	for _, body := range [][]byte{[]byte("{"), []byte(`{"draft_id":1}`)} {
		err := job.Handle(context.Background(), asynq.NewTask(TaskPublishProduct, body))
		require.ErrorIs(t, err, asynq.SkipRetry)
		require.ErrorIs(t, err, ErrInvalidPayload)
	}
	require.Empty(t, rec.calls)
}

func TestPublishProductJobRequiresReconciler(t *testing.T) {
	job := &PublishProductJob{}
	require.Error(t, job.Handle(context.Background(), publishTask(t, 1, "000001")))
}
