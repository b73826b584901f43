// Package migrations embeds the SQL schema and applies it in order.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/catalog/internal/platform/db"
)

// Files embeds the up and down scripts.
//
//go:embed *.sql
var Files embed.FS

// Up lists the forward scripts in apply order.
func Up() ([]string, error) {
	return list(".up.sql", false)
}

// Down lists the rollback scripts in apply order.
func Down() ([]string, error) {
	return list(".down.sql", true)
}

func list(suffix string, reverse bool) ([]string, error) {
	entries, err := fs.ReadDir(Files, ".")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	if reverse {
		slices.Reverse(names)
	}
	return names, nil
}

// Apply runs the named scripts in one transaction.
func Apply(ctx context.Context, pool *pgxpool.Pool, names []string) error {
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		for _, name := range names {
			body, err := Files.ReadFile(name)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, string(body)); err != nil {
				return fmt.Errorf("migrations: %s: %w", name, err)
			}
		}
		return nil
	})
}
