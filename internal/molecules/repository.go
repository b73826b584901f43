package molecules

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries reads molecules from PostgreSQL.
type Queries struct {
	db DBTX
}

// New constructs Queries over a pool or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const activeByIDs = `SELECT id, name, is_active
FROM molecules
WHERE id = ANY($1) AND is_active AND deleted_at IS NULL
FOR SHARE`

// ActiveByIDs returns the active, non-deleted molecules among ids. The rows are
// share-locked so a concurrent deactivation waits for the caller's transaction.
func (q *Queries) ActiveByIDs(ctx context.Context, ids []int64) ([]Molecule, error) {
	rows, err := q.db.Query(ctx, activeByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Molecule
	for rows.Next() {
		var m Molecule
		if err := rows.Scan(&m.ID, &m.Name, &m.IsActive); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
