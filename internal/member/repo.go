package member

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresDirectory persists members in Postgres.
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory creates a directory backed by Postgres.
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// DisplayName returns the member's display name.
func (d *PostgresDirectory) DisplayName(ctx context.Context, memberID string) (string, error) {
	row := d.db.QueryRowContext(ctx, `SELECT display_name FROM members WHERE id = $1`, memberID)
	var name string
	if err := row.Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return name, nil
}

// Get returns the member for memberID.
func (d *PostgresDirectory) Get(ctx context.Context, memberID string) (Member, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, display_name, scope_id, created_at FROM members WHERE id = $1
	`, memberID)
	var m Member
	if err := row.Scan(&m.ID, &m.DisplayName, &m.ScopeID, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Member{}, ErrNotFound
		}
		return Member{}, err
	}
	return m, nil
}

// Upsert creates or updates a member.
func (d *PostgresDirectory) Upsert(ctx context.Context, m Member) error {
	if m.ID == "" {
		return errors.New("member id required")
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO members (id, display_name, scope_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			scope_id = EXCLUDED.scope_id,
			updated_at = NOW()
	`, m.ID, m.DisplayName, m.ScopeID)
	return err
}

// RecordFollowUp stores a welcome task for a first-time visitor, picked up by
// the hospitality team outside this service. Replays of the same check-in are
// absorbed by the conflict clause.
func (d *PostgresDirectory) RecordFollowUp(ctx context.Context, memberID, sessionID string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO welcome_followups (member_id, session_id)
		VALUES ($1, $2)
		ON CONFLICT (member_id, session_id) DO NOTHING
	`, memberID, sessionID)
	return err
}
