package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"checkin/internal/checkin"
	"checkin/internal/queue"
	"checkin/internal/session"
)

func init() { gin.SetMode(gin.TestMode) }

func performAdmission(t *testing.T, result checkin.Result, q queue.Queue) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/checkins", nil)
	writeAdmissionResult(c, result, q)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body not JSON: %v\n%s", err, w.Body.String())
	}
	return w, body
}

func TestWriteAdmissionResultAdmitted(t *testing.T) {
	now := time.Date(2025, 3, 9, 9, 5, 0, 0, time.UTC)
	rec := checkin.AttendanceRecord{
		ID:        "rec-1",
		SessionID: "s1",
		MemberID:  "m1",
		Status:    checkin.StatusPresent,
		CheckInAt: now,
		Source:    checkin.SourceScan,
	}
	q := queue.NewInMemory(1)

	w, body := performAdmission(t, checkin.Result{Admitted: true, Record: &rec}, q)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if _, ok := body["record"]; !ok {
		t.Fatalf("admitted response missing record: %v", body)
	}

	// The admitted record must reach the follow-up queue.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	select {
	case msg := <-msgs:
		if msg.Type != "checkin" {
			t.Fatalf("queued type = %q", msg.Type)
		}
		var queued checkin.AttendanceRecord
		if err := json.Unmarshal(msg.Body, &queued); err != nil {
			t.Fatalf("queued body: %v", err)
		}
		if queued.ID != rec.ID || queued.MemberID != rec.MemberID {
			t.Fatalf("queued record = %+v", queued)
		}
	case <-time.After(time.Second):
		t.Fatal("admitted record never reached the queue")
	}
}

func TestWriteAdmissionResultRejections(t *testing.T) {
	opens := time.Date(2025, 3, 9, 11, 0, 0, 0, time.UTC)
	sess := &session.Session{
		ID:          "s1",
		ServiceName: "Sunday Service",
		ScopeID:     "branch-1",
		OpensAt:     opens,
		ExpiresAt:   opens.Add(2 * time.Hour),
	}
	existing := &checkin.AttendanceRecord{
		ID:        "rec-1",
		SessionID: "s1",
		MemberID:  "m1",
		Status:    checkin.StatusPresent,
		CheckInAt: opens.Add(4 * time.Minute),
		Source:    checkin.SourceScan,
	}

	cases := []struct {
		name       string
		result     checkin.Result
		wantStatus int
		wantKeys   []string
	}{
		{"malformed", checkin.Result{Reason: checkin.ReasonMalformedPayload}, http.StatusBadRequest, nil},
		{"unsupported type", checkin.Result{Reason: checkin.ReasonUnsupportedPayloadType}, http.StatusBadRequest, nil},
		{"unknown session", checkin.Result{Reason: checkin.ReasonUnknownSession}, http.StatusNotFound, nil},
		{"expired", checkin.Result{Reason: checkin.ReasonSessionExpired, Session: sess}, http.StatusConflict, []string{"opens_at", "expires_at"}},
		{"not yet open", checkin.Result{Reason: checkin.ReasonSessionNotYetOpen, Session: sess}, http.StatusConflict, []string{"opens_at", "expires_at"}},
		{"unauthenticated", checkin.Result{Reason: checkin.ReasonUnauthenticatedScan}, http.StatusUnauthorized, nil},
		{"duplicate", checkin.Result{Reason: checkin.ReasonDuplicateCheckIn, Existing: existing, Session: sess}, http.StatusConflict, []string{"checked_in_at", "status"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := performAdmission(t, tc.result, queue.NewInMemory(1))
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if body["reason"] != string(tc.result.Reason) {
				t.Fatalf("reason = %v, want %s", body["reason"], tc.result.Reason)
			}
			msg, _ := body["message"].(string)
			if msg == "" {
				t.Fatal("rejection must carry a user-facing message")
			}
			for _, key := range tc.wantKeys {
				if _, ok := body[key]; !ok {
					t.Fatalf("body missing %q: %v", key, body)
				}
			}
		})
	}
}

func TestDuplicateResponseCarriesOriginalCheckIn(t *testing.T) {
	checkedInAt := time.Date(2025, 3, 9, 11, 4, 0, 0, time.UTC)
	existing := &checkin.AttendanceRecord{
		ID:        "rec-1",
		SessionID: "s1",
		MemberID:  "m1",
		Status:    checkin.StatusLate,
		CheckInAt: checkedInAt,
		Source:    checkin.SourceScan,
	}

	_, body := performAdmission(t, checkin.Result{
		Reason:   checkin.ReasonDuplicateCheckIn,
		Existing: existing,
	}, queue.NewInMemory(1))

	gotAt, _ := body["checked_in_at"].(string)
	parsed, err := time.Parse(time.RFC3339, gotAt)
	if err != nil {
		t.Fatalf("checked_in_at = %q: %v", gotAt, err)
	}
	if !parsed.Equal(checkedInAt) {
		t.Fatalf("checked_in_at = %v, want %v", parsed, checkedInAt)
	}
	if body["status"] != string(checkin.StatusLate) {
		t.Fatalf("status = %v, want late", body["status"])
	}
}
