package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/catalog/internal/platform/db"
	"github.com/odyssey-erp/catalog/internal/shared"
)

const constraintCode = "products_code_key"

// Repository persists products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn in a read-committed transaction so that, once the per-code
// advisory lock is granted, the previous holder's commit is visible.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithReadCommittedTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const productColumns = `id, code, name, manufacturer,
	ROUND(mrp * 100)::bigint, ROUND(sales_price * 100)::bigint,
	category_id, combination,
	is_banned, is_active, is_discontinued, is_assured, is_refrigerated,
	created_by, published_by, published_at, created_at, updated_at, deleted_at`

func (r *txRepo) LockCode(ctx context.Context, code string) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended('catalog:product:' || $1, 0))`, code)
	return err
}

func (r *txRepo) LoadDraft(ctx context.Context, code string) (Source, error) {
	var (
		s          Source
		mrp, sales int64
	)
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, manufacturer,
	ROUND(mrp * 100)::bigint, ROUND(sales_price * 100)::bigint,
	category_id, combination, publish_status, deleted_at IS NOT NULL,
	is_banned, is_active, is_discontinued, is_assured, is_refrigerated,
	created_by, published_by, published_at
FROM products_draft
WHERE code = $1
FOR SHARE`, code).Scan(
		&s.DraftID, &s.Code, &s.Name, &s.Manufacturer,
		&mrp, &sales,
		&s.CategoryID, &s.Combination, &s.Status, &s.Trashed,
		&s.IsBanned, &s.IsActive, &s.IsDiscontinued, &s.IsAssured, &s.IsRefrigerated,
		&s.CreatedBy, &s.PublishedBy, &s.PublishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Source{}, ErrDraftNotFound
	}
	if err != nil {
		return Source{}, fmt.Errorf("products: load draft %s: %w", code, err)
	}
	s.MRP = shared.Money(mrp)
	s.SalesPrice = shared.Money(sales)
	return s, nil
}

func (r *txRepo) FindByCode(ctx context.Context, code string) (Product, bool, error) {
	p, err := scanProduct(r.tx.QueryRow(ctx, `SELECT `+productColumns+`
FROM products WHERE code = $1
FOR UPDATE`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, false, nil
	}
	if err != nil {
		return Product{}, false, err
	}
	return p, true, nil
}

// Update runs inside a savepoint so a failed statement does not abort the
// enclosing transaction and the caller can still fall back to recreating.
func (r *txRepo) Update(ctx context.Context, p Product) (Product, error) {
	sp, err := r.tx.Begin(ctx)
	if err != nil {
		return Product{}, err
	}
	defer func() { _ = sp.Rollback(ctx) }()

	out, err := scanProduct(sp.QueryRow(ctx, `UPDATE products SET
	name = $2, manufacturer = $3,
	mrp = $4::bigint::numeric / 100, sales_price = $5::bigint::numeric / 100,
	category_id = $6, combination = $7,
	is_banned = $8, is_active = $9, is_discontinued = $10, is_assured = $11, is_refrigerated = $12,
	created_by = $13, published_by = $14, published_at = $15,
	deleted_at = NULL, updated_at = NOW()
WHERE id = $1
RETURNING `+productColumns,
		p.ID, p.Name, p.Manufacturer, int64(p.MRP), int64(p.SalesPrice),
		p.CategoryID, p.Combination,
		p.IsBanned, p.IsActive, p.IsDiscontinued, p.IsAssured, p.IsRefrigerated,
		p.CreatedBy, p.PublishedBy, p.PublishedAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrUpdateFailed
	}
	if err != nil {
		return Product{}, fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	if err := sp.Commit(ctx); err != nil {
		return Product{}, err
	}
	return out, nil
}

func (r *txRepo) ForceDelete(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	return err
}

func (r *txRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var ok bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE code = $1)`, code).Scan(&ok)
	return ok, err
}

func (r *txRepo) Insert(ctx context.Context, p Product) (Product, error) {
	out, err := scanProduct(r.tx.QueryRow(ctx, `INSERT INTO products (
	code, name, manufacturer, mrp, sales_price, category_id, combination,
	is_banned, is_active, is_discontinued, is_assured, is_refrigerated,
	created_by, published_by, published_at, created_at, updated_at)
VALUES ($1, $2, $3, $4::bigint::numeric / 100, $5::bigint::numeric / 100, $6, $7,
	$8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
RETURNING `+productColumns,
		p.Code, p.Name, p.Manufacturer, int64(p.MRP), int64(p.SalesPrice), p.CategoryID, p.Combination,
		p.IsBanned, p.IsActive, p.IsDiscontinued, p.IsAssured, p.IsRefrigerated,
		p.CreatedBy, p.PublishedBy, p.PublishedAt,
	))
	if db.IsUniqueViolation(err, constraintCode) {
		return Product{}, ErrConcurrentCreate
	}
	return out, err
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p          Product
		mrp, sales int64
	)
	err := row.Scan(
		&p.ID, &p.Code, &p.Name, &p.Manufacturer,
		&mrp, &sales,
		&p.CategoryID, &p.Combination,
		&p.IsBanned, &p.IsActive, &p.IsDiscontinued, &p.IsAssured, &p.IsRefrigerated,
		&p.CreatedBy, &p.PublishedBy, &p.PublishedAt, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	if err != nil {
		return Product{}, err
	}
	p.MRP = shared.Money(mrp)
	p.SalesPrice = shared.Money(sales)
	return p, nil
}

// Unreconciled lists published live drafts that have no live product under
// their code, oldest first.
func (r *Repository) Unreconciled(ctx context.Context, limit int) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT d.id, d.code
FROM products_draft d
WHERE d.publish_status = 'published'
	AND d.deleted_at IS NULL
	AND d.code IS NOT NULL
	AND NOT EXISTS (
		SELECT 1 FROM products p WHERE p.code = d.code AND p.deleted_at IS NULL)
ORDER BY d.id
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("products: list unreconciled drafts: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.DraftID, &req.Code); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
