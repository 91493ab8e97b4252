package checkin

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// PostgresStore persists attendance records in Postgres. The unique index on
// (session_id, member_id) is the storage-layer backstop for the dedup
// invariant; concurrent scans race on the insert, never on a read.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store backed by Postgres.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// TryInsert writes the record unless one exists for the same pair. A conflict
// surfaces as inserted=false with the existing record.
func (s *PostgresStore) TryInsert(ctx context.Context, rec AttendanceRecord) (AttendanceRecord, bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, session_id, member_id, status, check_in_at, is_first_timer, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, member_id) DO NOTHING
		RETURNING created_at
	`, rec.ID, rec.SessionID, rec.MemberID, rec.Status, rec.CheckInAt, rec.IsFirstTimer, rec.Source)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			existing, ferr := s.Find(ctx, rec.SessionID, rec.MemberID)
			if ferr != nil {
				return AttendanceRecord{}, false, ferr
			}
			if existing == nil {
				// Row vanished between insert and read; records are never
				// deleted while a session is live, so treat as store failure.
				return AttendanceRecord{}, false, errors.New("conflicting record not found")
			}
			return *existing, false, nil
		}
		return AttendanceRecord{}, false, err
	}
	return rec, true, nil
}

// Find returns the record for (sessionID, memberID), or nil.
func (s *PostgresStore) Find(ctx context.Context, sessionID, memberID string) (*AttendanceRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, member_id, status, check_in_at, is_first_timer, source, created_at
		FROM attendance_records
		WHERE session_id = $1 AND member_id = $2
	`, sessionID, memberID)
	var rec AttendanceRecord
	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.MemberID, &rec.Status, &rec.CheckInAt, &rec.IsFirstTimer, &rec.Source, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListForSession returns the session's records in admission order. The seq
// column is assigned at insert, so it reflects the order inserts completed
// rather than wall-clock scan order.
func (s *PostgresStore) ListForSession(ctx context.Context, sessionID string) ([]AttendanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, member_id, status, check_in_at, is_first_timer, source, created_at
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []AttendanceRecord
	for rows.Next() {
		var rec AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.MemberID, &rec.Status, &rec.CheckInAt, &rec.IsFirstTimer, &rec.Source, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// CountByStatus tallies the session's records per status.
func (s *PostgresStore) CountByStatus(ctx context.Context, sessionID string) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM attendance_records
		WHERE session_id = $1
		GROUP BY status
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// HasPriorRecord reports whether the member has any record in any session.
func (s *PostgresStore) HasPriorRecord(ctx context.Context, memberID string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM attendance_records WHERE member_id = $1)
	`, memberID)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
