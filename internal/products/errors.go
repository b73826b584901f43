package products

import "errors"

var (
	// ErrDraftNotFound means no draft carries the code yet. The publishing
	// transaction may not have committed, so the job retries.
	ErrDraftNotFound = errors.New("no product draft carries this code")
	// ErrDraftNotPublished means the draft was unpublished, edited or deleted
	// after the job was enqueued. There is nothing to project.
	ErrDraftNotPublished = errors.New("product draft is no longer published")
	// ErrConcurrentCreate means another writer created the product between the
	// lookup and the insert.
	ErrConcurrentCreate = errors.New("product appeared during reconciliation")
	// ErrUpdateFailed reports an in-place update that touched no row.
	ErrUpdateFailed = errors.New("failed to update product")
	// ErrDeleteFailed reports a product still present after a forced delete.
	ErrDeleteFailed = errors.New("failed to delete existing product")
)
