package audit

import (
	"context"
	"database/sql"
)

// Schema creates the audit table. UPDATE and DELETE should be revoked from
// the application role.
const Schema = `
CREATE TABLE IF NOT EXISTS call_audit_events (
  id         uuid PRIMARY KEY,
  agent_id   text NOT NULL,
  type       text NOT NULL,
  session_id text NOT NULL DEFAULT '',
  from_state text NOT NULL DEFAULT '',
  to_state   text NOT NULL DEFAULT '',
  cause      text NOT NULL DEFAULT '',
  version    bigint NOT NULL DEFAULT 0,
  message    text NOT NULL DEFAULT '',
  metadata   jsonb,
  created_at timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS call_audit_events_agent_idx ON call_audit_events (agent_id, created_at);
`

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO call_audit_events (
  id, agent_id, type, session_id, from_state, to_state, cause, version, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
`
	var meta sql.NullString
	if e.Metadata != "" {
		meta = sql.NullString{String: e.Metadata, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.AgentID,
		string(e.Type),
		e.SessionID,
		e.FromState,
		e.ToState,
		e.Cause,
		e.Version,
		e.Message,
		meta,
		e.CreatedAt,
	)
	return err
}
