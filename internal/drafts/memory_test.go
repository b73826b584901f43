package drafts

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/odyssey-erp/catalog/internal/molecules"
	"github.com/odyssey-erp/catalog/internal/shared"
)

var epoch = time.Date(2025, 2, 4, 9, 0, 0, 0, time.UTC)

type memoryStore struct {
	mu           sync.Mutex
	drafts       map[int64]Draft
	molecules    map[int64]molecules.Molecule
	categories   map[int64]bool
	productCodes []string
	nextID       int64
	ticks        int

	sequenceLocks int
	listLoads     int
	updateErrs    []error
}

type memoryTx struct {
	store *memoryStore
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		drafts: make(map[int64]Draft),
		molecules: map[int64]molecules.Molecule{
			1: {ID: 1, Name: "Paracetamol", IsActive: true},
			2: {ID: 2, Name: "Caffeine", IsActive: true},
			3: {ID: 3, Name: "Ibuprofen", IsActive: false},
			4: {ID: 4, Name: "Cetirizine", IsActive: true},
		},
		categories: map[int64]bool{1: true, 2: true},
	}
}

func (s *memoryStore) tick() time.Time {
	s.ticks++
	return epoch.Add(time.Duration(s.ticks) * time.Minute)
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[int64]Draft, len(s.drafts))
	for id, d := range s.drafts {
		snapshot[id] = cloneDraft(d)
	}
	nextID := s.nextID

	if err := fn(ctx, &memoryTx{store: s}); err != nil {
		s.drafts = snapshot
		s.nextID = nextID
		return err
	}
	return nil
}

func (s *memoryStore) ListLive(ctx context.Context) ([]Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listLoads++
	return s.sorted(func(d Draft) bool { return !d.Trashed() }), nil
}

func (s *memoryStore) ListTrashed(ctx context.Context) ([]Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(Draft.Trashed), nil
}

func (s *memoryStore) Get(ctx context.Context, id int64, withTrashed bool) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(id, withTrashed)
}

func (s *memoryStore) find(id int64, withTrashed bool) (Draft, error) {
	d, ok := s.drafts[id]
	if !ok || (d.Trashed() && !withTrashed) {
		return Draft{}, ErrNotFound
	}
	return cloneDraft(d), nil
}

func (s *memoryStore) sorted(keep func(Draft) bool) []Draft {
	out := []Draft{}
	for _, id := range slices.Sorted(maps.Keys(s.drafts)) {
		if d := s.drafts[id]; keep(d) {
			out = append(out, cloneDraft(d))
		}
	}
	slices.SortStableFunc(out, func(a, b Draft) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	return out
}

func (tx *memoryTx) ActiveByIDs(ctx context.Context, ids []int64) ([]molecules.Molecule, error) {
	var out []molecules.Molecule
	for _, id := range ids {
		if m, ok := tx.store.molecules[id]; ok && m.IsActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (tx *memoryTx) LockDraft(ctx context.Context, id int64, withTrashed bool) (Draft, error) {
	return tx.store.find(id, withTrashed)
}

func (tx *memoryTx) CategoryExists(ctx context.Context, id int64) (bool, error) {
	return tx.store.categories[id], nil
}

func (tx *memoryTx) CombinationInUse(ctx context.Context, combination string, excludeID int64) (bool, error) {
	for _, d := range tx.store.drafts {
		if d.ID != excludeID && !d.Trashed() && d.Combination != nil && *d.Combination == combination {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) Insert(ctx context.Context, d Draft) (int64, error) {
	if d.Combination != nil {
		if taken, _ := tx.CombinationInUse(ctx, *d.Combination, 0); taken {
			return 0, newValidationError("molecule_ids", ErrDuplicateCombination)
		}
	}
	tx.store.nextID++
	d.ID = tx.store.nextID
	d.CreatedAt = tx.store.tick()
	d.UpdatedAt = d.CreatedAt
	d.UpdatedBy = d.CreatedBy
	d.MoleculeIDs = []int64{}
	tx.store.drafts[d.ID] = d
	return d.ID, nil
}

func (tx *memoryTx) Update(ctx context.Context, d Draft) error {
	if len(tx.store.updateErrs) > 0 {
		err := tx.store.updateErrs[0]
		tx.store.updateErrs = tx.store.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	current, ok := tx.store.drafts[d.ID]
	if !ok {
		return ErrNotFound
	}
	if d.Code != nil {
		for _, other := range tx.store.drafts {
			if other.ID != d.ID && other.Code != nil && *other.Code == *d.Code {
				return ErrCodeTaken
			}
		}
	}
	d.CreatedAt = current.CreatedAt
	d.CreatedBy = current.CreatedBy
	d.DeletedAt = current.DeletedAt
	d.DeletedBy = current.DeletedBy
	d.MoleculeIDs = current.MoleculeIDs
	d.UpdatedAt = tx.store.tick()
	tx.store.drafts[d.ID] = d
	return nil
}

func (tx *memoryTx) ReplaceMolecules(ctx context.Context, draftID int64, moleculeIDs []int64) error {
	d := tx.store.drafts[draftID]
	d.MoleculeIDs = append([]int64{}, moleculeIDs...)
	tx.store.drafts[draftID] = d
	return nil
}

func (tx *memoryTx) SoftDelete(ctx context.Context, id int64, deletedBy *int64, at time.Time) error {
	d, ok := tx.store.drafts[id]
	if !ok || d.Trashed() {
		return ErrNotFound
	}
	d.DeletedAt = &at
	d.DeletedBy = deletedBy
	tx.store.drafts[id] = d
	return nil
}

func (tx *memoryTx) Restore(ctx context.Context, id int64) error {
	d := tx.store.drafts[id]
	d.DeletedAt = nil
	d.DeletedBy = nil
	tx.store.drafts[id] = d
	return nil
}

func (tx *memoryTx) Purge(ctx context.Context, id int64) error {
	if _, ok := tx.store.drafts[id]; !ok {
		return ErrNotFound
	}
	delete(tx.store.drafts, id)
	return nil
}

func (tx *memoryTx) LockCodeSequence(ctx context.Context) error {
	tx.store.sequenceLocks++
	return nil
}

func (tx *memoryTx) MaxNumericCode(ctx context.Context) (int64, error) {
	var latest int64
	consider := func(code string) {
		if n, err := strconv.ParseInt(code, 10, 64); err == nil && n > latest {
			latest = n
		}
	}
	for _, d := range tx.store.drafts {
		if d.Code != nil {
			consider(*d.Code)
		}
	}
	for _, code := range tx.store.productCodes {
		consider(code)
	}
	return latest, nil
}

func cloneDraft(d Draft) Draft {
	d.MoleculeIDs = slices.Clone(d.MoleculeIDs)
	return d
}

type recordingQueue struct {
	mu   sync.Mutex
	reqs []ReconcileRequest
	err  error
}

func (q *recordingQueue) EnqueueReconcile(ctx context.Context, req ReconcileRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.reqs = append(q.reqs, req)
	return nil
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.reqs)
}

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func ptr[T any](v T) *T { return &v }

func validInput() Input {
	return Input{
		Name:         ptr("Dolo 650"),
		Manufacturer: ptr("Micro Labs"),
		MRP:          ptr(shared.Money(3050)),
		SalesPrice:   ptr(shared.Money(2800)),
		CategoryID:   ptr(int64(1)),
		MoleculeIDs:  ptr(molecules.IDList{2, 1}),
	}
}

func asUser(caps ...string) context.Context {
	return shared.ContextWithPrincipal(context.Background(), &shared.Principal{
		UserID:       42,
		Name:         "Catalog Editor",
		Capabilities: caps,
	})
}

func newTestService(store *memoryStore, queue *recordingQueue) *Service {
	clock := &steppingClock{now: epoch}
	return NewService(ServiceConfig{Store: store, Queue: queue, Clock: clock.Now})
}
