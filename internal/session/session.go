package session

import (
	"errors"
	"time"

	"checkin/internal/qrpayload"
)

var (
	// ErrInvalidDuration is returned when a session is created with a
	// non-positive validity span.
	ErrInvalidDuration = errors.New("session duration must be positive")
	// ErrNotFound is returned when no session exists for the given id.
	ErrNotFound = errors.New("session not found")
)

// Session is one service's check-in window. Sessions are immutable once
// created; "expired" is derived from the clock, never stored.
type Session struct {
	ID          string    `json:"id"`
	ServiceName string    `json:"service_name"`
	ScopeID     string    `json:"scope_id"`
	OpensAt     time.Time `json:"opens_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// ValidAt reports whether t falls inside the check-in window. Both bounds
// are inclusive.
func (s Session) ValidAt(t time.Time) bool {
	return !t.Before(s.OpensAt) && !t.After(s.ExpiresAt)
}

// Remaining returns the time left until expiry, clamped at zero. Used for UI
// countdowns only; admission re-checks validity independently.
func (s Session) Remaining(now time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Payload returns the QR projection of the session.
func (s Session) Payload() qrpayload.Payload {
	return qrpayload.Payload{
		Type:        qrpayload.PayloadType,
		SessionID:   s.ID,
		ServiceName: s.ServiceName,
		ScopeID:     s.ScopeID,
		ExpiresAt:   s.ExpiresAt.UTC(),
	}
}
