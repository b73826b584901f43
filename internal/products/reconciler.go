package products

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Store abstracts product persistence for the reconciler.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
}

// TxStore exposes the statements of one reconciliation transaction.
type TxStore interface {
	// LockCode serialises reconciliations of the same code until the
	// transaction ends.
	LockCode(ctx context.Context, code string) error
	// LoadDraft reads the draft holding code; ErrDraftNotFound when none does.
	LoadDraft(ctx context.Context, code string) (Source, error)
	// FindByCode returns the product with code, soft-deleted rows included.
	FindByCode(ctx context.Context, code string) (Product, bool, error)
	// Update rewrites p in place. A failure leaves the transaction usable.
	Update(ctx context.Context, p Product) (Product, error)
	ForceDelete(ctx context.Context, id int64) error
	ExistsByCode(ctx context.Context, code string) (bool, error)
	// Insert creates p; ErrConcurrentCreate when the code is already taken.
	Insert(ctx context.Context, p Product) (Product, error)
}

// Feed receives product snapshots after a committed reconciliation.
type Feed interface {
	Publish(ctx context.Context, s Snapshot) error
}

// Reconciler projects published drafts onto the product table.
type Reconciler struct {
	store  Store
	feed   Feed
	logger *slog.Logger
}

// NewReconciler builds a Reconciler. feed may be nil.
func NewReconciler(store Store, feed Feed, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, feed: feed, logger: logger}
}

// Reconcile makes the product identified by req.Code match its published
// draft. The whole projection commits or rolls back as one transaction, so
// running it again for the same draft state converges on the same row.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) (Result, error) {
	if req.Code == "" {
		return Result{}, fmt.Errorf("products: reconcile: empty code: %w", ErrDraftNotPublished)
	}
	var res Result
	err := r.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		if err := tx.LockCode(ctx, req.Code); err != nil {
			return fmt.Errorf("lock code: %w", err)
		}
		src, err := tx.LoadDraft(ctx, req.Code)
		if err != nil {
			return err
		}
		if !src.Published() || (req.DraftID != 0 && src.DraftID != req.DraftID) {
			return ErrDraftNotPublished
		}

		existing, found, err := tx.FindByCode(ctx, req.Code)
		if err != nil {
			return fmt.Errorf("find product: %w", err)
		}
		if found {
			res, err = r.replace(ctx, tx, existing, src)
			return err
		}

		// Re-check right before creating; a racing writer must surface as a
		// retryable failure, never as a duplicate row.
		exists, err := tx.ExistsByCode(ctx, req.Code)
		if err != nil {
			return fmt.Errorf("check product: %w", err)
		}
		if exists {
			return ErrConcurrentCreate
		}
		created, err := tx.Insert(ctx, src.apply(Product{}))
		if err != nil {
			return err
		}
		res = Result{Outcome: OutcomeCreated, Product: created}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	r.publish(ctx, res)
	return res, nil
}

// replace updates existing in place and falls back to delete then create when
// the update fails.
func (r *Reconciler) replace(ctx context.Context, tx TxStore, existing Product, src Source) (Result, error) {
	updated, err := tx.Update(ctx, src.apply(existing))
	if err == nil {
		return Result{Outcome: OutcomeUpdated, Product: updated}, nil
	}
	r.logger.Warn("product update failed, recreating",
		slog.String("code", existing.Code),
		slog.Int64("product_id", existing.ID),
		slog.Any("error", err))

	if err := tx.ForceDelete(ctx, existing.ID); err != nil {
		return Result{}, fmt.Errorf("delete product: %w", err)
	}
	exists, err := tx.ExistsByCode(ctx, existing.Code)
	if err != nil {
		return Result{}, fmt.Errorf("check product: %w", err)
	}
	if exists {
		return Result{}, ErrDeleteFailed
	}
	created, err := tx.Insert(ctx, src.apply(Product{}))
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: OutcomeRecreated, Product: created}, nil
}

func (r *Reconciler) publish(ctx context.Context, res Result) {
	if r.feed == nil {
		return
	}
	if err := r.feed.Publish(ctx, SnapshotOf(res.Product)); err != nil {
		r.logger.Warn("publish product snapshot",
			slog.String("code", res.Product.Code),
			slog.Any("error", err))
	}
}

// Retryable reports whether a reconciliation error may succeed on a later
// attempt.
func Retryable(err error) bool {
	return err != nil && !errors.Is(err, ErrDraftNotPublished)
}
