package branches

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrBranchNotFound occurs when a sucursal is missing.
var ErrBranchNotFound = errors.New("branches: branch not found")

// Repository loads sucursal rows from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads a single branch by id.
func (r *Repository) Get(ctx context.Context, id int64) (Branch, error) {
	var b Branch
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(timezone, ''), active, created_at FROM sucursales WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.Name, &b.Timezone, &b.Active, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Branch{}, ErrBranchNotFound
	}
	if err != nil {
		return Branch{}, fmt.Errorf("branches: get: %w", err)
	}
	return b, nil
}

// ListActive returns all active branches, used by warmup jobs.
func (r *Repository) ListActive(ctx context.Context) ([]Branch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, COALESCE(timezone, ''), active, created_at FROM sucursales WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("branches: list active: %w", err)
	}
	defer rows.Close()

	var out []Branch
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.Timezone, &b.Active, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("branches: scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
