package drafts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/catalog/internal/molecules"
	"github.com/odyssey-erp/catalog/internal/platform/db"
	"github.com/odyssey-erp/catalog/internal/shared"
)

// Constraint names mapped onto domain errors.
const (
	constraintCode        = "products_draft_code_key"
	constraintCombination = "products_draft_combination_live_key"
)

// Repository persists drafts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	*molecules.Queries
	tx pgx.Tx
}

// WithTx runs fn in a read-committed transaction. Lifecycle operations rely on
// row locks and the code-sequence advisory lock, and a waiter must see what the
// previous lock holder committed.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithReadCommittedTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{Queries: molecules.New(tx), tx: tx})
	})
}

const selectDraft = `SELECT d.id, d.code, d.name, d.manufacturer,
	ROUND(d.mrp * 100)::bigint, ROUND(d.sales_price * 100)::bigint,
	d.category_id, d.combination, d.publish_status,
	d.is_banned, d.is_active, d.is_discontinued, d.is_assured, d.is_refrigerated,
	d.created_by, d.updated_by, d.deleted_by, d.published_by, d.published_at,
	d.created_at, d.updated_at, d.deleted_at,
	c.name, cu.name, uu.name, pu.name,
	COALESCE((SELECT array_agg(pm.molecule_id ORDER BY pm.molecule_id)
		FROM product_molecules pm WHERE pm.product_draft_id = d.id), '{}'::bigint[])
FROM products_draft d
LEFT JOIN categories c ON c.id = d.category_id
LEFT JOIN users cu ON cu.id = d.created_by
LEFT JOIN users uu ON uu.id = d.updated_by
LEFT JOIN users pu ON pu.id = d.published_by`

func (r *Repository) ListLive(ctx context.Context) ([]Draft, error) {
	return queryDrafts(ctx, r.pool, selectDraft+`
WHERE d.deleted_at IS NULL
ORDER BY d.created_at DESC, d.id DESC`)
}

func (r *Repository) ListTrashed(ctx context.Context) ([]Draft, error) {
	return queryDrafts(ctx, r.pool, selectDraft+`
WHERE d.deleted_at IS NOT NULL
ORDER BY d.deleted_at DESC, d.id DESC`)
}

func (r *Repository) Get(ctx context.Context, id int64, withTrashed bool) (Draft, error) {
	d, err := scanDraft(r.pool.QueryRow(ctx, selectDraft+`
WHERE d.id = $1 AND ($2 OR d.deleted_at IS NULL)`, id, withTrashed))
	if errors.Is(err, pgx.ErrNoRows) {
		return Draft{}, ErrNotFound
	}
	return d, err
}

func (r *txRepo) LockDraft(ctx context.Context, id int64, withTrashed bool) (Draft, error) {
	d, err := scanDraft(r.tx.QueryRow(ctx, selectDraft+`
WHERE d.id = $1 AND ($2 OR d.deleted_at IS NULL)
FOR UPDATE OF d`, id, withTrashed))
	if errors.Is(err, pgx.ErrNoRows) {
		return Draft{}, ErrNotFound
	}
	return d, err
}

func (r *txRepo) CategoryExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1 AND deleted_at IS NULL)`, id).Scan(&ok)
	return ok, err
}

func (r *txRepo) CombinationInUse(ctx context.Context, combination string, excludeID int64) (bool, error) {
	var ok bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
	SELECT 1 FROM products_draft
	WHERE combination = $1 AND deleted_at IS NULL AND id <> $2)`, combination, excludeID).Scan(&ok)
	return ok, err
}

func (r *txRepo) Insert(ctx context.Context, d Draft) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO products_draft (
	name, manufacturer, mrp, sales_price, category_id, combination, publish_status,
	is_banned, is_active, is_discontinued, is_assured, is_refrigerated,
	created_by, updated_by, created_at, updated_at)
VALUES ($1, $2, $3::bigint::numeric / 100, $4::bigint::numeric / 100, $5, $6, $7,
	$8, $9, $10, $11, $12, $13, $13, NOW(), NOW())
RETURNING id`,
		d.Name, d.Manufacturer, int64(d.MRP), int64(d.SalesPrice), d.CategoryID, d.Combination, string(d.Status),
		d.IsBanned, d.IsActive, d.IsDiscontinued, d.IsAssured, d.IsRefrigerated,
		d.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, mapWriteError(err)
	}
	return id, nil
}

func (r *txRepo) Update(ctx context.Context, d Draft) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products_draft SET
	code = $2, name = $3, manufacturer = $4,
	mrp = $5::bigint::numeric / 100, sales_price = $6::bigint::numeric / 100,
	category_id = $7, combination = $8, publish_status = $9,
	is_banned = $10, is_active = $11, is_discontinued = $12, is_assured = $13, is_refrigerated = $14,
	updated_by = $15, published_by = $16, published_at = $17, updated_at = NOW()
WHERE id = $1`,
		d.ID, d.Code, d.Name, d.Manufacturer,
		int64(d.MRP), int64(d.SalesPrice),
		d.CategoryID, d.Combination, string(d.Status),
		d.IsBanned, d.IsActive, d.IsDiscontinued, d.IsAssured, d.IsRefrigerated,
		d.UpdatedBy, d.PublishedBy, d.PublishedAt,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) ReplaceMolecules(ctx context.Context, draftID int64, moleculeIDs []int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM product_molecules WHERE product_draft_id = $1`, draftID); err != nil {
		return err
	}
	if len(moleculeIDs) == 0 {
		return nil
	}
	_, err := r.tx.Exec(ctx, `INSERT INTO product_molecules (product_draft_id, molecule_id)
SELECT $1, unnest($2::bigint[])`, draftID, moleculeIDs)
	return err
}

func (r *txRepo) SoftDelete(ctx context.Context, id int64, deletedBy *int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products_draft
SET deleted_at = $2, deleted_by = $3
WHERE id = $1 AND deleted_at IS NULL`, id, at, deletedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) Restore(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE products_draft
SET deleted_at = NULL, deleted_by = NULL
WHERE id = $1`, id)
	return mapWriteError(err)
}

func (r *txRepo) Purge(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM products_draft WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) LockCodeSequence(ctx context.Context) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended('catalog:product_code_sequence', 0))`)
	return err
}

func (r *txRepo) MaxNumericCode(ctx context.Context) (int64, error) {
	var latest int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(MAX(code::bigint), 0) FROM (
	SELECT code FROM products_draft WHERE code ~ '^[0-9]{1,18}$'
	UNION ALL
	SELECT code FROM products WHERE code ~ '^[0-9]{1,18}$'
) codes`).Scan(&latest)
	return latest, err
}

func mapWriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err, constraintCode):
		return ErrCodeTaken
	case db.IsUniqueViolation(err, constraintCombination):
		return newValidationError("molecule_ids", ErrDuplicateCombination)
	}
	return err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryDrafts(ctx context.Context, q querier, sql string, args ...any) ([]Draft, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Draft{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDraft(row pgx.Row) (Draft, error) {
	var (
		d                              Draft
		mrp, sales                     int64
		status                         string
		category, creator, updater, pb *string
	)
	err := row.Scan(
		&d.ID, &d.Code, &d.Name, &d.Manufacturer,
		&mrp, &sales,
		&d.CategoryID, &d.Combination, &status,
		&d.IsBanned, &d.IsActive, &d.IsDiscontinued, &d.IsAssured, &d.IsRefrigerated,
		&d.CreatedBy, &d.UpdatedBy, &d.DeletedBy, &d.PublishedBy, &d.PublishedAt,
		&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt,
		&category, &creator, &updater, &pb,
		&d.MoleculeIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Draft{}, err
		}
		return Draft{}, fmt.Errorf("drafts: scan draft: %w", err)
	}
	d.MRP = shared.Money(mrp)
	d.SalesPrice = shared.Money(sales)
	d.Status = Status(status)
	if category != nil {
		d.Category = &CategoryRef{ID: d.CategoryID, Name: *category}
	}
	d.Creator = userRef(d.CreatedBy, creator)
	d.Updater = userRef(d.UpdatedBy, updater)
	d.Publisher = userRef(d.PublishedBy, pb)
	return d, nil
}

func userRef(id *int64, name *string) *UserRef {
	if id == nil || name == nil {
		return nil
	}
	return &UserRef{ID: *id, Name: *name}
}
