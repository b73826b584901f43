package drafts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/catalog/internal/molecules"
	"github.com/odyssey-erp/catalog/internal/shared"
)

// publishAttempts bounds how often a publish retries after losing a code race.
const publishAttempts = 3

// Service coordinates the draft lifecycle.
type Service struct {
	store     Store
	cache     Cache
	queue     ReconcileQueue
	allocator CodeAllocator
	logger    *slog.Logger
	clock     func() time.Time
}

// ServiceConfig groups the collaborators of Service. Cache and Allocator are
// optional.
type ServiceConfig struct {
	Store     Store
	Cache     Cache
	Queue     ReconcileQueue
	Allocator CodeAllocator
	Logger    *slog.Logger
	Clock     func() time.Time
}

// NewService builds Service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		store:     cfg.Store,
		cache:     cfg.Cache,
		queue:     cfg.Queue,
		allocator: cfg.Allocator,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
	}
	if s.cache == nil {
		s.cache = passthroughCache{}
	}
	if s.allocator == nil {
		s.allocator = SequentialAllocator{Width: CodeWidth}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// List returns a page of live drafts from the cached listing.
func (s *Service) List(ctx context.Context, q ListQuery) (Page, error) {
	if q.Status != "" && !q.Status.Valid() {
		return Page{}, newValidationError("status", ErrUnknownStatus)
	}
	all, err := s.cache.GetOrLoad(ctx, s.store.ListLive)
	if err != nil {
		return Page{}, err
	}
	filtered := all
	if q.Status != "" || q.ActiveOnly {
		filtered = make([]Draft, 0, len(all))
		for _, d := range all {
			if q.Status != "" && d.Status != q.Status {
				continue
			}
			if q.ActiveOnly && !d.IsActive {
				continue
			}
			filtered = append(filtered, d)
		}
	}
	return paginate(filtered, q.Page, q.PerPage), nil
}

// ListTrashed returns a page of soft-deleted drafts straight from storage.
func (s *Service) ListTrashed(ctx context.Context, page, perPage int) (Page, error) {
	trashed, err := s.store.ListTrashed(ctx)
	if err != nil {
		return Page{}, err
	}
	return paginate(trashed, page, perPage), nil
}

// Get returns a live draft, consulting the cached listing first. With
// withTrashed the lookup goes to storage and includes soft-deleted drafts.
func (s *Service) Get(ctx context.Context, id int64, withTrashed bool) (Draft, error) {
	if id <= 0 {
		return Draft{}, ErrNotFound
	}
	if !withTrashed {
		if d, ok := s.cache.Lookup(ctx, id); ok {
			return d, nil
		}
	}
	return s.store.Get(ctx, id, withTrashed)
}

// Create stores a new draft in the draft state.
func (s *Service) Create(ctx context.Context, in Input) (Draft, error) {
	if err := ValidateFor(ModeCreate, in); err != nil {
		return Draft{}, err
	}
	if err := checkPrices(*in.MRP, *in.SalesPrice); err != nil {
		return Draft{}, err
	}

	d := Draft{
		Name:         *in.Name,
		Manufacturer: *in.Manufacturer,
		MRP:          *in.MRP,
		SalesPrice:   *in.SalesPrice,
		CategoryID:   *in.CategoryID,
		Status:       StatusDraft,
		Flags:        applyFlags(DefaultFlags(), in),
		CreatedBy:    shared.CurrentUserID(ctx),
	}

	var id int64
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		if err := s.ensureCategory(ctx, tx, d.CategoryID); err != nil {
			return err
		}
		var moleculeIDs []int64
		if in.MoleculeIDs != nil {
			moleculeIDs = molecules.NormalizeIDs(*in.MoleculeIDs)
			combination, err := s.resolveCombination(ctx, tx, moleculeIDs, 0)
			if err != nil {
				return err
			}
			d.Combination = combination
		}
		var err error
		id, err = tx.Insert(ctx, d)
		if err != nil {
			return err
		}
		return tx.ReplaceMolecules(ctx, id, moleculeIDs)
	})
	if err != nil {
		return Draft{}, err
	}

	s.refresh(ctx, "create", id)
	return s.store.Get(ctx, id, false)
}

// Update applies the supplied fields. Editing a draft that is not in the draft
// state demotes it to unpublished; it has to be published again.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Draft, error) {
	if id <= 0 {
		return Draft{}, ErrNotFound
	}
	if err := ValidateFor(ModeUpdate, in); err != nil {
		return Draft{}, err
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		d, err := tx.LockDraft(ctx, id, false)
		if err != nil {
			return err
		}
		if in.Name != nil {
			d.Name = *in.Name
		}
		if in.Manufacturer != nil {
			d.Manufacturer = *in.Manufacturer
		}
		if in.MRP != nil {
			d.MRP = *in.MRP
		}
		if in.SalesPrice != nil {
			d.SalesPrice = *in.SalesPrice
		}
		if err := checkPrices(d.MRP, d.SalesPrice); err != nil {
			return err
		}
		if in.CategoryID != nil && *in.CategoryID != d.CategoryID {
			if err := s.ensureCategory(ctx, tx, *in.CategoryID); err != nil {
				return err
			}
			d.CategoryID = *in.CategoryID
		}
		d.Flags = applyFlags(d.Flags, in)

		var moleculeIDs []int64
		if in.MoleculeIDs != nil {
			moleculeIDs = molecules.NormalizeIDs(*in.MoleculeIDs)
			combination, err := s.resolveCombination(ctx, tx, moleculeIDs, d.ID)
			if err != nil {
				return err
			}
			d.Combination = combination
		}

		if d.Status != StatusDraft {
			d.Status = StatusUnpublished
			d.PublishedBy = nil
			d.PublishedAt = nil
		}
		d.UpdatedBy = shared.CurrentUserID(ctx)

		if err := tx.Update(ctx, d); err != nil {
			return err
		}
		if in.MoleculeIDs != nil {
			return tx.ReplaceMolecules(ctx, d.ID, moleculeIDs)
		}
		return nil
	})
	if err != nil {
		return Draft{}, err
	}

	s.refresh(ctx, "update", id)
	return s.store.Get(ctx, id, false)
}

// Publish moves a draft or unpublished draft to published, allocating its code
// on first publication and enqueueing reconciliation. Publishing a published
// draft changes nothing and reports AlreadyPublished.
func (s *Service) Publish(ctx context.Context, id int64) (PublishResult, error) {
	if id <= 0 {
		return PublishResult{}, ErrNotFound
	}
	var already bool
	err := s.withCodeRetry(ctx, func(ctx context.Context, tx TxStore) error {
		d, err := tx.LockDraft(ctx, id, false)
		if err != nil {
			return err
		}
		already, err = s.publishLocked(ctx, tx, d)
		return err
	})
	if err != nil {
		return PublishResult{}, err
	}

	if !already {
		s.refresh(ctx, "publish", id)
	}
	d, err := s.store.Get(ctx, id, false)
	if err != nil {
		return PublishResult{}, err
	}
	return PublishResult{Draft: d, AlreadyPublished: already}, nil
}

// Unpublish withdraws a published draft. The code is kept for re-publication
// and no reconciliation runs.
func (s *Service) Unpublish(ctx context.Context, id int64) (Draft, error) {
	if id <= 0 {
		return Draft{}, ErrNotFound
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		d, err := tx.LockDraft(ctx, id, false)
		if err != nil {
			return err
		}
		if d.Status != StatusPublished {
			return ErrNotPublished
		}
		d.Status = StatusUnpublished
		d.PublishedBy = nil
		d.PublishedAt = nil
		d.UpdatedBy = shared.CurrentUserID(ctx)
		return tx.Update(ctx, d)
	})
	if err != nil {
		return Draft{}, err
	}

	s.refresh(ctx, "unpublish", id)
	return s.store.Get(ctx, id, false)
}

// SoftDelete hides a draft from default queries. The canonical product is
// left untouched.
func (s *Service) SoftDelete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		d, err := tx.LockDraft(ctx, id, false)
		if err != nil {
			return err
		}
		return s.softDeleteLocked(ctx, tx, d)
	})
	if err != nil {
		return err
	}
	s.refresh(ctx, "delete", id)
	return nil
}

// Restore brings a soft-deleted draft back. Restoring a live draft is a no-op.
func (s *Service) Restore(ctx context.Context, id int64) (Draft, error) {
	if id <= 0 {
		return Draft{}, ErrNotFound
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		d, err := tx.LockDraft(ctx, id, true)
		if err != nil {
			return err
		}
		return s.restoreLocked(ctx, tx, d)
	})
	if err != nil {
		return Draft{}, err
	}
	s.refresh(ctx, "restore", id)
	return s.store.Get(ctx, id, false)
}

// ForceDelete removes a draft permanently, trashed or not. The caller needs the
// force-delete capability.
func (s *Service) ForceDelete(ctx context.Context, id int64) error {
	if !shared.CurrentUserHas(ctx, shared.PermProductDraftForceDelete) {
		return ErrForbidden
	}
	if id <= 0 {
		return ErrNotFound
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		d, err := tx.LockDraft(ctx, id, true)
		if err != nil {
			return err
		}
		return tx.Purge(ctx, d.ID)
	})
	if err != nil {
		return err
	}
	s.refresh(ctx, "force_delete", id)
	return nil
}

func (s *Service) publishLocked(ctx context.Context, tx TxStore, d Draft) (bool, error) {
	if d.Status == StatusPublished {
		return true, nil
	}
	if d.Code == nil {
		code, err := s.allocator.Allocate(ctx, tx)
		if err != nil {
			return false, err
		}
		d.Code = &code
	}
	now := s.clock()
	d.Status = StatusPublished
	d.PublishedBy = shared.CurrentUserID(ctx)
	d.PublishedAt = &now
	if err := tx.Update(ctx, d); err != nil {
		return false, err
	}
	if s.queue == nil {
		return false, errors.New("drafts: reconcile queue not configured")
	}
	// Enqueued before commit: a rolled back publish leaves at most an orphan
	// message, which the job discards because the draft is not published.
	req := ReconcileRequest{DraftID: d.ID, Code: *d.Code, PublishedAt: now}
	if err := s.queue.EnqueueReconcile(ctx, req); err != nil {
		return false, fmt.Errorf("drafts: enqueue reconcile %s: %w", *d.Code, err)
	}
	return false, nil
}

func (s *Service) softDeleteLocked(ctx context.Context, tx TxStore, d Draft) error {
	return tx.SoftDelete(ctx, d.ID, shared.CurrentUserID(ctx), s.clock())
}

func (s *Service) restoreLocked(ctx context.Context, tx TxStore, d Draft) error {
	if !d.Trashed() {
		return nil
	}
	if d.Combination != nil {
		taken, err := tx.CombinationInUse(ctx, *d.Combination, d.ID)
		if err != nil {
			return err
		}
		if taken {
			return newValidationError("combination", ErrDuplicateCombination)
		}
	}
	return tx.Restore(ctx, d.ID)
}

func (s *Service) ensureCategory(ctx context.Context, tx TxStore, categoryID int64) error {
	ok, err := tx.CategoryExists(ctx, categoryID)
	if err != nil {
		return err
	}
	if !ok {
		return newValidationError("category_id", ErrCategoryNotFound)
	}
	return nil
}

func (s *Service) resolveCombination(ctx context.Context, tx TxStore, moleculeIDs []int64, excludeID int64) (*string, error) {
	combination, err := molecules.Resolve(ctx, tx, moleculeIDs)
	switch {
	case errors.Is(err, molecules.ErrInvalidMolecules):
		return nil, newValidationError("molecule_ids", err)
	case errors.Is(err, molecules.ErrFingerprint):
		return nil, newValidationError("molecule_ids", err)
	case err != nil:
		return nil, err
	}
	if combination == nil {
		return nil, nil
	}
	taken, err := tx.CombinationInUse(ctx, *combination, excludeID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, newValidationError("molecule_ids", ErrDuplicateCombination)
	}
	return combination, nil
}

// withCodeRetry reruns fn in a fresh transaction when it lost a code race.
func (s *Service) withCodeRetry(ctx context.Context, fn func(context.Context, TxStore) error) error {
	var err error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		err = s.store.WithTx(ctx, fn)
		if !errors.Is(err, ErrCodeTaken) {
			return err
		}
		s.logger.Warn("product code collision, retrying publish", slog.Int("attempt", attempt))
	}
	return err
}

// refresh recomputes the cached listing after a committed mutation. A failed
// refresh is logged: the write already committed and the cache drops the stale
// snapshot on its own.
func (s *Service) refresh(ctx context.Context, op string, id int64) {
	if err := s.cache.Refresh(ctx, s.store.ListLive); err != nil {
		s.logger.Warn("refresh draft listing cache",
			slog.String("op", op),
			slog.Int64("draft_id", id),
			slog.Any("error", err))
	}
}

func applyFlags(f Flags, in Input) Flags {
	if in.IsBanned != nil {
		f.IsBanned = *in.IsBanned
	}
	if in.IsActive != nil {
		f.IsActive = *in.IsActive
	}
	if in.IsDiscontinued != nil {
		f.IsDiscontinued = *in.IsDiscontinued
	}
	if in.IsAssured != nil {
		f.IsAssured = *in.IsAssured
	}
	if in.IsRefrigerated != nil {
		f.IsRefrigerated = *in.IsRefrigerated
	}
	return f
}

func paginate(items []Draft, page, perPage int) Page {
	p := shared.NewPagination(page, perPage, len(items))
	start, end := p.Bounds()
	out := make([]Draft, end-start)
	copy(out, items[start:end])
	return Page{Items: out, Pagination: p}
}
