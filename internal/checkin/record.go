package checkin

import (
	"context"
	"time"
)

// Status classifies an attendance record.
type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusAbsent  Status = "absent"
	StatusExcused Status = "excused"
)

// Source records how a check-in entered the system.
type Source string

const (
	SourceScan  Source = "scan"
	SourceAdmin Source = "admin-manual"
	SourceKiosk Source = "kiosk"
)

// AttendanceRecord is one member's admission to one session. At most one
// record exists per (session, member) pair; records are never mutated here,
// corrections are an administrative concern.
type AttendanceRecord struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	MemberID     string    `json:"member_id"`
	Status       Status    `json:"status"`
	CheckInAt    time.Time `json:"check_in_at"`
	IsFirstTimer bool      `json:"is_first_timer"`
	Source       Source    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
}

// AttendanceStore is the append-only ledger of admitted check-ins. TryInsert
// is the single serializing operation the dedup invariant relies on.
type AttendanceStore interface {
	// TryInsert persists the record unless one already exists for the same
	// (session, member) pair. It returns the stored record and whether this
	// call inserted it; when inserted is false the returned record is the
	// pre-existing one.
	TryInsert(ctx context.Context, rec AttendanceRecord) (stored AttendanceRecord, inserted bool, err error)
	// Find returns the record for (sessionID, memberID), or nil.
	Find(ctx context.Context, sessionID, memberID string) (*AttendanceRecord, error)
	// ListForSession returns the session's records in admission order.
	ListForSession(ctx context.Context, sessionID string) ([]AttendanceRecord, error)
	// CountByStatus derives per-status totals from the session's records.
	CountByStatus(ctx context.Context, sessionID string) (map[Status]int, error)
	// HasPriorRecord reports whether the member has any attendance record in
	// any session. Drives first-timer detection. Only per-(session, member)
	// admission is serialized, so two concurrent first-ever check-ins of one
	// member into different sessions may both flag a first timer; the
	// welcome_followups primary key absorbs the duplicate downstream.
	HasPriorRecord(ctx context.Context, memberID string) (bool, error)
}

// FeedEvent wraps an admitted record with the member's display name for
// presentation on live dashboards.
type FeedEvent struct {
	Record     AttendanceRecord `json:"record"`
	MemberName string           `json:"member_name"`
}

// Publisher pushes newly admitted check-ins to live subscribers. Delivery is
// best-effort; the system of record is the AttendanceStore.
type Publisher interface {
	Publish(ctx context.Context, ev FeedEvent) error
}

// MemberDirectory resolves member display names for feed events.
type MemberDirectory interface {
	DisplayName(ctx context.Context, memberID string) (string, error)
}
