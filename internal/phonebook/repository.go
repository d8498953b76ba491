// Package phonebook provides the saved phone number bounded context:
// reusable caller and recipient numbers with usage tracking.
package phonebook

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NumberType distinguishes originating numbers from dialed ones.
const (
	TypeRecipient = "recipient"
	TypeFrom      = "from"
)

// ErrNumberNotFound is returned when no saved number matches.
var ErrNumberNotFound = errors.New("saved phone number not found")

// SavedNumber is one stored phone number.
type SavedNumber struct {
	ID          int64     `json:"id"`
	PhoneNumber string    `json:"phoneNumber"`
	Label       string    `json:"label"`
	NumberType  string    `json:"numberType"`
	LastUsed    time.Time `json:"lastUsed"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Repository provides data access for saved phone numbers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new phonebook repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const numberColumns = `id, phone_number, label, number_type, last_used, created_at`

func scanNumber(row pgx.Row) (SavedNumber, error) {
	var n SavedNumber
	err := row.Scan(&n.ID, &n.PhoneNumber, &n.Label, &n.NumberType, &n.LastUsed, &n.CreatedAt)
	return n, err
}

// Upsert saves a number, updating the label and bumping last_used when
// the number already exists.
func (r *Repository) Upsert(ctx context.Context, phoneNumber, label, numberType string) (SavedNumber, error) {
	return scanNumber(r.pool.QueryRow(ctx, `
		INSERT INTO saved_phone_numbers (phone_number, label, number_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone_number) DO UPDATE
		SET label = CASE WHEN EXCLUDED.label <> '' THEN EXCLUDED.label ELSE saved_phone_numbers.label END,
		    last_used = now()
		RETURNING `+numberColumns+`
	`, phoneNumber, label, numberType))
}

// List returns saved numbers, optionally filtered by type, most recently
// used first.
func (r *Repository) List(ctx context.Context, numberType string) ([]SavedNumber, error) {
	query := `SELECT ` + numberColumns + ` FROM saved_phone_numbers`
	args := []interface{}{}
	if numberType != "" {
		query += ` WHERE number_type = $1`
		args = append(args, numberType)
	}
	query += ` ORDER BY last_used DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SavedNumber
	for rows.Next() {
		n, err := scanNumber(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// GetByNumber looks a saved number up by its E.164 value.
func (r *Repository) GetByNumber(ctx context.Context, phoneNumber string) (SavedNumber, error) {
	n, err := scanNumber(r.pool.QueryRow(ctx, `
		SELECT `+numberColumns+` FROM saved_phone_numbers WHERE phone_number = $1
	`, phoneNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return SavedNumber{}, ErrNumberNotFound
	}
	return n, err
}

// TouchUsage bumps last_used for a number.
func (r *Repository) TouchUsage(ctx context.Context, phoneNumber string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE saved_phone_numbers SET last_used = now() WHERE phone_number = $1
	`, phoneNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNumberNotFound
	}
	return nil
}

// Delete removes a saved number.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM saved_phone_numbers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNumberNotFound
	}
	return nil
}
