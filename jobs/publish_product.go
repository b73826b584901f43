package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/catalog/internal/jobs"
	"github.com/odyssey-erp/catalog/internal/products"
)

// ProductReconciler projects a published draft onto the product table.
type ProductReconciler interface {
	Reconcile(ctx context.Context, req products.Request) (products.Result, error)
}

// PublishProductJob runs reconciliation for TaskPublishProduct tasks.
type PublishProductJob struct {
	Reconciler ProductReconciler
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewPublishProductJob constructs the job handler.
func NewPublishProductJob(reconciler ProductReconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *PublishProductJob {
	return &PublishProductJob{Reconciler: reconciler, Logger: logger, Metrics: metrics}
}

// Handle executes one reconciliation attempt. Errors are returned to Asynq,
// which retries with backoff; a draft that is no longer published ends the task.
func (j *PublishProductJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Reconciler == nil {
		return errors.New("publish product: dependencies not configured")
	}
	payload, err := decodePublishProduct(task)
	if err != nil {
		j.log().Error("discard publish product task", slog.Any("error", err))
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	attempt, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	logger := j.log().With(
		slog.String("code", payload.Code),
		slog.Int64("draft_id", payload.DraftID),
		slog.String("correlation_id", payload.CorrelationID),
		slog.Int("attempt", attempt),
		slog.Int("max_retry", maxRetry),
	)

	tracker := j.Metrics.Track(TaskPublishProduct)
	res, err := j.Reconciler.Reconcile(ctx, products.Request{DraftID: payload.DraftID, Code: payload.Code})
	switch {
	case err != nil && !products.Retryable(err):
		logger.Info("draft no longer published, skipping reconciliation")
		j.Metrics.RecordOutcome("skipped")
		return tracker.End(nil)
	case err != nil:
		logger.Error("failed to publish product", slog.Any("error", err))
		if attempt >= maxRetry {
			logger.Error("reconciliation retries exhausted", slog.Any("error", err))
		}
		return tracker.End(err)
	}

	j.Metrics.RecordOutcome(string(res.Outcome))
	logger.Info("product reconciled",
		slog.String("outcome", string(res.Outcome)),
		slog.Int64("product_id", res.Product.ID))
	return tracker.End(nil)
}

func (j *PublishProductJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
