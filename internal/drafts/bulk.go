package drafts

import (
	"context"
	"slices"
)

// BulkPublish publishes every listed draft in one transaction. Drafts that are
// already published count as succeeded.
func (s *Service) BulkPublish(ctx context.Context, ids []int64) (BulkResult, error) {
	res, err := s.bulk(ctx, ids, func(ctx context.Context, tx TxStore, id int64) error {
		d, err := tx.LockDraft(ctx, id, false)
		if err != nil {
			return err
		}
		_, err = s.publishLocked(ctx, tx, d)
		return err
	}, true)
	if err == nil {
		s.refresh(ctx, "bulk_publish", res.Succeeded[0])
	}
	return res, err
}

// BulkDelete soft-deletes every listed draft in one transaction.
func (s *Service) BulkDelete(ctx context.Context, ids []int64) (BulkResult, error) {
	res, err := s.bulk(ctx, ids, func(ctx context.Context, tx TxStore, id int64) error {
		d, err := tx.LockDraft(ctx, id, false)
		if err != nil {
			return err
		}
		return s.softDeleteLocked(ctx, tx, d)
	}, false)
	if err == nil {
		s.refresh(ctx, "bulk_delete", res.Succeeded[0])
	}
	return res, err
}

// BulkRestore restores every listed draft in one transaction.
func (s *Service) BulkRestore(ctx context.Context, ids []int64) (BulkResult, error) {
	res, err := s.bulk(ctx, ids, func(ctx context.Context, tx TxStore, id int64) error {
		d, err := tx.LockDraft(ctx, id, true)
		if err != nil {
			return err
		}
		return s.restoreLocked(ctx, tx, d)
	}, false)
	if err == nil {
		s.refresh(ctx, "bulk_restore", res.Succeeded[0])
	}
	return res, err
}

// bulk applies fn to each id inside a single transaction. Any failure rolls the
// whole batch back and reports every requested id as failed. Ids are visited in
// ascending order so overlapping batches lock rows in the same sequence.
func (s *Service) bulk(ctx context.Context, ids []int64, fn func(context.Context, TxStore, int64) error, allocates bool) (BulkResult, error) {
	ordered, err := normalizeBatch(ids)
	if err != nil {
		return BulkResult{Succeeded: []int64{}, Failed: []int64{}}, err
	}
	run := func(ctx context.Context, tx TxStore) error {
		for _, id := range ordered {
			if err := fn(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	}
	if allocates {
		err = s.withCodeRetry(ctx, run)
	} else {
		err = s.store.WithTx(ctx, run)
	}
	if err != nil {
		return BulkResult{Succeeded: []int64{}, Failed: ordered}, err
	}
	return BulkResult{Succeeded: ordered, Failed: []int64{}}, nil
}

func normalizeBatch(ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, newValidationError("ids", ErrEmptyBatch)
	}
	ordered := slices.Clone(ids)
	for _, id := range ordered {
		if id <= 0 {
			return nil, newValidationError("ids", ErrNotFound)
		}
	}
	slices.Sort(ordered)
	return slices.Compact(ordered), nil
}
