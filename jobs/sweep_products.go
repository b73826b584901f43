package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/catalog/internal/drafts"
	jobmetrics "github.com/odyssey-erp/catalog/internal/jobs"
	"github.com/odyssey-erp/catalog/internal/products"
)

// TaskSweepProducts re-enqueues reconciliation for published drafts that have
// no product, typically after a publish task exhausted its retries.
const TaskSweepProducts = "catalog:sweep_products"

const defaultSweepBatch = 500

// UnreconciledFinder lists published drafts lacking a live product.
type UnreconciledFinder interface {
	Unreconciled(ctx context.Context, limit int) ([]products.Request, error)
}

// SweepProductsJob walks unreconciled drafts and queues a publish task for each.
type SweepProductsJob struct {
	Finder    UnreconciledFinder
	Queue     drafts.ReconcileQueue
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	BatchSize int
}

// NewSweepProductsJob constructs the sweep handler.
func NewSweepProductsJob(finder UnreconciledFinder, queue drafts.ReconcileQueue, logger *slog.Logger, metrics *jobmetrics.Metrics) *SweepProductsJob {
	return &SweepProductsJob{Finder: finder, Queue: queue, Logger: logger, Metrics: metrics}
}

// NewSweepProductsTask builds the periodic sweep task.
func NewSweepProductsTask() *asynq.Task {
	return asynq.NewTask(TaskSweepProducts, nil)
}

// Handle runs one sweep. Enqueue failures are collected so one bad draft does
// not stop the rest of the batch.
func (j *SweepProductsJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Finder == nil || j.Queue == nil {
		return errors.New("sweep products: dependencies not configured")
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := j.BatchSize
	if limit <= 0 {
		limit = defaultSweepBatch
	}

	tracker := j.Metrics.Track(TaskSweepProducts)
	pending, err := j.Finder.Unreconciled(ctx, limit)
	if err != nil {
		return tracker.End(err)
	}

	var errs []error
	queued := 0
	for _, req := range pending {
		err := j.Queue.EnqueueReconcile(ctx, drafts.ReconcileRequest{DraftID: req.DraftID, Code: req.Code})
		if err != nil {
			logger.Warn("requeue reconciliation",
				slog.Int64("draft_id", req.DraftID),
				slog.String("code", req.Code),
				slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		queued++
	}
	if queued > 0 {
		logger.Info("requeued unreconciled drafts", slog.Int("count", queued))
	}
	return tracker.End(errors.Join(errs...))
}
