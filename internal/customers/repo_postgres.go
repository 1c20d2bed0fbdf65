package customers

import (
	"context"
	"database/sql"
	"errors"

	"collections-dialer/internal/calls"
)

// NOTE: PostgresDirectory reads from a customers table owned by the record
// service. It assumes columns id, display_name and phone_number, with
// phone_number stored in normalized national form.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory { return &PostgresDirectory{db: db} }

func (d *PostgresDirectory) ByID(ctx context.Context, id string) (calls.CustomerRef, error) {
	const q = `
SELECT id, display_name
FROM customers
WHERE id = $1
`
	return d.one(ctx, q, id)
}

func (d *PostgresDirectory) ByPhone(ctx context.Context, number string) (calls.CustomerRef, error) {
	const q = `
SELECT id, display_name
FROM customers
WHERE phone_number = $1
ORDER BY updated_at DESC
LIMIT 1
`
	return d.one(ctx, q, number)
}

func (d *PostgresDirectory) one(ctx context.Context, q string, arg string) (calls.CustomerRef, error) {
	var ref calls.CustomerRef
	if err := d.db.QueryRowContext(ctx, q, arg).Scan(&ref.ID, &ref.DisplayName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return calls.CustomerRef{}, ErrNotFound
		}
		return calls.CustomerRef{}, err
	}
	return ref, nil
}
