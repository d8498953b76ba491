// Package lock provides a table-backed mutual exclusion primitive with
// expiry-based recovery. At most one unexpired holder may exist per lock
// name across all process instances.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Row is one persisted lock record.
type Row struct {
	Name      string
	LockedBy  uuid.UUID
	ExpiresAt time.Time
}

// Store is the persistence contract the Manager depends on.
type Store interface {
	// Get returns the lock row for name, or nil when no row exists.
	Get(ctx context.Context, name string) (*Row, error)
	// Upsert claims the lock row for holder with the given expiry,
	// replacing any existing row for name.
	Upsert(ctx context.Context, name string, holder uuid.UUID, expiresAt time.Time) error
	// Delete removes the lock row only when holder still owns it.
	Delete(ctx context.Context, name string, holder uuid.UUID) error
}

// Repository provides data access for system locks.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new lock repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the lock row for name, or nil when no row exists.
func (r *Repository) Get(ctx context.Context, name string) (*Row, error) {
	var row Row
	err := r.pool.QueryRow(ctx, `
		SELECT name, locked_by, expires_at
		FROM system_locks
		WHERE name = $1
	`, name).Scan(&row.Name, &row.LockedBy, &row.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert claims the lock row for holder, replacing any existing row.
func (r *Repository) Upsert(ctx context.Context, name string, holder uuid.UUID, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO system_locks (name, locked_by, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET locked_by = $2, expires_at = $3
	`, name, holder, expiresAt)
	return err
}

// Delete removes the lock row only when holder still owns it.
func (r *Repository) Delete(ctx context.Context, name string, holder uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM system_locks
		WHERE name = $1 AND locked_by = $2
	`, name, holder)
	return err
}
