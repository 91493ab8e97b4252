package checkin

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"checkin/internal/qrpayload"
	"checkin/internal/session"
)

// Reason identifies why a scan was rejected. Every reason maps to a distinct
// user-facing message; a generic "check-in failed" is never enough because
// duplicate, expired and malformed each require a different user action.
type Reason string

const (
	ReasonMalformedPayload       Reason = "malformed_payload"
	ReasonUnsupportedPayloadType Reason = "unsupported_payload_type"
	ReasonUnknownSession         Reason = "unknown_session"
	ReasonSessionExpired         Reason = "session_expired"
	ReasonSessionNotYetOpen      Reason = "session_not_yet_open"
	ReasonUnauthenticatedScan    Reason = "unauthenticated_scan"
	ReasonDuplicateCheckIn       Reason = "duplicate_check_in"
)

// Message returns the user-facing text for a rejection.
func (r Reason) Message() string {
	switch r {
	case ReasonMalformedPayload:
		return "invalid code, please rescan"
	case ReasonUnsupportedPayloadType:
		return "this QR code is not a check-in code"
	case ReasonUnknownSession:
		return "this check-in session does not exist"
	case ReasonSessionExpired:
		return "check-in for this service has closed"
	case ReasonSessionNotYetOpen:
		return "check-in for this service has not opened yet"
	case ReasonUnauthenticatedScan:
		return "sign in before scanning"
	case ReasonDuplicateCheckIn:
		return "already checked in"
	default:
		return "check-in rejected"
	}
}

// Result is the tagged outcome of one admission attempt. Expected rejections
// never surface as errors; only store or transport failures do.
type Result struct {
	Admitted bool
	// Record is the newly created record when Admitted.
	Record *AttendanceRecord
	// Reason is set on rejection.
	Reason Reason
	// Existing carries the original record on DuplicateCheckIn, so the UI can
	// say "already checked in at 11:04" instead of reporting a hard failure.
	Existing *AttendanceRecord
	// Session is set once the session resolved, so temporal rejections can
	// show the actual window.
	Session *session.Session
}

// Admitter decides whether a scan becomes an attendance record. The rules run
// in a fixed order; the first matching rule wins.
type Admitter struct {
	sessions session.Registry
	store    AttendanceStore
	members  MemberDirectory
	feed     Publisher
	grace    time.Duration
}

// NewAdmitter wires the admission pipeline. Check-ins up to gracePeriod after
// the session opens classify as present, later ones as late.
func NewAdmitter(sessions session.Registry, store AttendanceStore, members MemberDirectory, feed Publisher, gracePeriod time.Duration) *Admitter {
	if gracePeriod < 0 {
		gracePeriod = 0
	}
	return &Admitter{
		sessions: sessions,
		store:    store,
		members:  members,
		feed:     feed,
		grace:    gracePeriod,
	}
}

// Admit evaluates one scan attempt. It performs exactly one store write and
// at most one feed publish on success, and no writes on any rejection path.
// Given the same payload and member it is safe to retry: the dedup invariant
// turns a replay into a DuplicateCheckIn, never a second record.
func (a *Admitter) Admit(ctx context.Context, payloadBytes []byte, memberID string, now time.Time) (Result, error) {
	return a.admit(ctx, payloadBytes, memberID, now, SourceScan)
}

// AdmitFrom is Admit with an explicit source, used by kiosk clients.
func (a *Admitter) AdmitFrom(ctx context.Context, payloadBytes []byte, memberID string, now time.Time, src Source) (Result, error) {
	return a.admit(ctx, payloadBytes, memberID, now, src)
}

func (a *Admitter) admit(ctx context.Context, payloadBytes []byte, memberID string, now time.Time, src Source) (Result, error) {
	payload, err := qrpayload.Decode(payloadBytes)
	if err != nil {
		if errors.Is(err, qrpayload.ErrUnsupportedPayloadType) {
			return Result{Reason: ReasonUnsupportedPayloadType}, nil
		}
		return Result{Reason: ReasonMalformedPayload}, nil
	}

	sess, err := a.sessions.Lookup(ctx, payload.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Result{Reason: ReasonUnknownSession}, nil
		}
		return Result{}, err
	}

	if now.After(sess.ExpiresAt) {
		return Result{Reason: ReasonSessionExpired, Session: &sess}, nil
	}
	if now.Before(sess.OpensAt) {
		return Result{Reason: ReasonSessionNotYetOpen, Session: &sess}, nil
	}

	if memberID == "" {
		return Result{Reason: ReasonUnauthenticatedScan, Session: &sess}, nil
	}

	if existing, err := a.store.Find(ctx, sess.ID, memberID); err != nil {
		return Result{}, err
	} else if existing != nil {
		return Result{Reason: ReasonDuplicateCheckIn, Existing: existing, Session: &sess}, nil
	}

	status := StatusPresent
	if now.After(sess.OpensAt.Add(a.grace)) {
		status = StatusLate
	}

	prior, err := a.store.HasPriorRecord(ctx, memberID)
	if err != nil {
		return Result{}, err
	}

	rec := AttendanceRecord{
		ID:           uuid.NewString(),
		SessionID:    sess.ID,
		MemberID:     memberID,
		Status:       status,
		CheckInAt:    now.UTC(),
		IsFirstTimer: !prior,
		Source:       src,
	}
	stored, inserted, err := a.store.TryInsert(ctx, rec)
	if err != nil {
		return Result{}, err
	}
	if !inserted {
		// Lost the race against a concurrent scan of the same member.
		return Result{Reason: ReasonDuplicateCheckIn, Existing: &stored, Session: &sess}, nil
	}

	a.publish(ctx, stored)
	return Result{Admitted: true, Record: &stored, Session: &sess}, nil
}

// RecordManual enters an attendance record on a member's behalf, bypassing
// payload decoding and window checks. Facilitators use it to mark absences,
// excuses and paper-list arrivals; the dedup invariant still applies.
func (a *Admitter) RecordManual(ctx context.Context, sessionID, memberID string, status Status, now time.Time) (Result, error) {
	sess, err := a.sessions.Lookup(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Result{Reason: ReasonUnknownSession}, nil
		}
		return Result{}, err
	}
	if memberID == "" {
		return Result{Reason: ReasonUnauthenticatedScan, Session: &sess}, nil
	}

	prior, err := a.store.HasPriorRecord(ctx, memberID)
	if err != nil {
		return Result{}, err
	}

	rec := AttendanceRecord{
		ID:           uuid.NewString(),
		SessionID:    sess.ID,
		MemberID:     memberID,
		Status:       status,
		CheckInAt:    now.UTC(),
		IsFirstTimer: !prior,
		Source:       SourceAdmin,
	}
	stored, inserted, err := a.store.TryInsert(ctx, rec)
	if err != nil {
		return Result{}, err
	}
	if !inserted {
		return Result{Reason: ReasonDuplicateCheckIn, Existing: &stored, Session: &sess}, nil
	}

	a.publish(ctx, stored)
	return Result{Admitted: true, Record: &stored, Session: &sess}, nil
}

func (a *Admitter) publish(ctx context.Context, rec AttendanceRecord) {
	name, err := a.members.DisplayName(ctx, rec.MemberID)
	if err != nil || name == "" {
		name = rec.MemberID
	}
	if err := a.feed.Publish(ctx, FeedEvent{Record: rec, MemberName: name}); err != nil {
		log.Printf("feed publish failed for record %s: %v", rec.ID, err)
	}
}
