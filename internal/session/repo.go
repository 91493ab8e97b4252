package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PostgresRegistry persists sessions so multiple API instances agree on
// which sessions exist and when they expire.
type PostgresRegistry struct {
	db *sql.DB
}

// NewPostgresRegistry creates a registry backed by Postgres.
func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

// Create constructs and stores a new session.
func (r *PostgresRegistry) Create(ctx context.Context, serviceName, scopeID string, opensAt time.Time, duration time.Duration) (Session, error) {
	if duration <= 0 {
		return Session{}, ErrInvalidDuration
	}
	s := Session{
		ID:          uuid.NewString(),
		ServiceName: serviceName,
		ScopeID:     scopeID,
		OpensAt:     opensAt.UTC(),
		ExpiresAt:   opensAt.Add(duration).UTC(),
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO checkin_sessions (id, service_name, scope_id, opens_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, s.ID, s.ServiceName, s.ScopeID, s.OpensAt, s.ExpiresAt)
	if err := row.Scan(&s.CreatedAt); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Lookup returns the session for id.
func (r *PostgresRegistry) Lookup(ctx context.Context, id string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, service_name, scope_id, opens_at, expires_at, created_at
		FROM checkin_sessions WHERE id = $1
	`, id)
	var s Session
	if err := row.Scan(&s.ID, &s.ServiceName, &s.ScopeID, &s.OpensAt, &s.ExpiresAt, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return s, nil
}

// IsValid reports whether the session exists and now falls inside its window.
func (r *PostgresRegistry) IsValid(ctx context.Context, id string, now time.Time) (bool, error) {
	s, err := r.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.ValidAt(now), nil
}

// TimeRemaining returns max(0, expiresAt - now) for the session.
func (r *PostgresRegistry) TimeRemaining(ctx context.Context, id string, now time.Time) (time.Duration, error) {
	s, err := r.Lookup(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.Remaining(now), nil
}
