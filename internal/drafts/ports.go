package drafts

import (
	"context"
	"time"

	"github.com/odyssey-erp/catalog/internal/molecules"
)

// Store abstracts draft persistence for the service.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	// ListLive returns every live draft, newest first, with relations expanded.
	ListLive(ctx context.Context) ([]Draft, error)
	ListTrashed(ctx context.Context) ([]Draft, error)
	Get(ctx context.Context, id int64, withTrashed bool) (Draft, error)
}

// TxStore exposes the statements that run inside one lifecycle transaction.
type TxStore interface {
	molecules.Lookup

	// LockDraft loads and row-locks a draft; ErrNotFound when missing, or when
	// trashed and withTrashed is false.
	LockDraft(ctx context.Context, id int64, withTrashed bool) (Draft, error)
	CategoryExists(ctx context.Context, id int64) (bool, error)
	CombinationInUse(ctx context.Context, combination string, excludeID int64) (bool, error)
	Insert(ctx context.Context, d Draft) (int64, error)
	Update(ctx context.Context, d Draft) error
	ReplaceMolecules(ctx context.Context, draftID int64, moleculeIDs []int64) error
	SoftDelete(ctx context.Context, id int64, deletedBy *int64, at time.Time) error
	Restore(ctx context.Context, id int64) error
	Purge(ctx context.Context, id int64) error

	// LockCodeSequence serialises code allocation until the transaction ends.
	LockCodeSequence(ctx context.Context) error
	// MaxNumericCode returns the highest all-digit code held by any draft or product.
	MaxNumericCode(ctx context.Context) (int64, error)
}

// ReconcileQueue hands published drafts to the asynchronous reconciliation job.
type ReconcileQueue interface {
	EnqueueReconcile(ctx context.Context, req ReconcileRequest) error
}

// Cache is the listing accelerator consulted before storage.
type Cache interface {
	GetOrLoad(ctx context.Context, load Loader) ([]Draft, error)
	Refresh(ctx context.Context, load Loader) error
	Lookup(ctx context.Context, id int64) (Draft, bool)
}

// Loader reads the authoritative listing from storage.
type Loader func(ctx context.Context) ([]Draft, error)

type passthroughCache struct{}

func (passthroughCache) GetOrLoad(ctx context.Context, load Loader) ([]Draft, error) {
	return load(ctx)
}

func (passthroughCache) Refresh(context.Context, Loader) error { return nil }

func (passthroughCache) Lookup(context.Context, int64) (Draft, bool) { return Draft{}, false }
