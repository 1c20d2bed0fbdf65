package wrapup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"collections-dialer/internal/calls"
)

// Schema creates the table PostgresStore writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS call_wrapups (
  id               uuid PRIMARY KEY,
  agent_id         text NOT NULL,
  phone_number     text NOT NULL,
  counterpart_name text NOT NULL DEFAULT '',
  direction        text NOT NULL,
  session_start    timestamptz NOT NULL,
  session_end      timestamptz NOT NULL,
  duration_ms      bigint NOT NULL,
  outcome          text NOT NULL,
  notes            text NOT NULL DEFAULT '',
  callback_date    timestamptz,
  account_ref      text NOT NULL DEFAULT '',
  created_at       timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS call_wrapups_callback_idx ON call_wrapups (callback_date)
  WHERE outcome = 'callback_requested';
`

// PostgresStore writes wrap-ups to call_wrapups; see Schema.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) Save(ctx context.Context, r Record) error {
	const q = `
INSERT INTO call_wrapups (
  id, agent_id, phone_number, counterpart_name, direction, session_start, session_end,
  duration_ms, outcome, notes, callback_date, account_ref, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
ON CONFLICT (id) DO NOTHING
`
	var cb sql.NullTime
	if r.CallbackDate != nil {
		cb = sql.NullTime{Time: *r.CallbackDate, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, q,
		r.ID,
		r.AgentID,
		r.PhoneNumber,
		r.CounterpartName,
		string(r.Direction),
		r.SessionStart,
		r.SessionEnd,
		r.Duration.Milliseconds(),
		string(r.Outcome),
		r.Notes,
		cb,
		r.AccountRef,
		r.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert wrap-up: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDueCallbacks(ctx context.Context, before time.Time, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, agent_id, phone_number, counterpart_name, direction, session_start, session_end,
       duration_ms, outcome, notes, callback_date, account_ref, created_at
FROM call_wrapups
WHERE outcome = $1 AND callback_date IS NOT NULL AND callback_date <= $2
ORDER BY callback_date ASC
LIMIT $3
`
	rows, err := s.db.QueryContext(ctx, q, string(calls.OutcomeCallbackRequested), before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r          Record
			direction  string
			outcome    string
			durationMs int64
			cb         sql.NullTime
		)
		if err := rows.Scan(
			&r.ID,
			&r.AgentID,
			&r.PhoneNumber,
			&r.CounterpartName,
			&direction,
			&r.SessionStart,
			&r.SessionEnd,
			&durationMs,
			&outcome,
			&r.Notes,
			&cb,
			&r.AccountRef,
			&r.CreatedAt,
		); err != nil {
			return nil, err
		}
		r.Direction = calls.Direction(direction)
		r.Outcome = calls.Outcome(outcome)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		if cb.Valid {
			t := cb.Time
			r.CallbackDate = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
