package checkin

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local AttendanceStore for dev and testing. The
// mutex makes TryInsert atomic; records are appended in admission order.
type MemoryStore struct {
	mu        sync.RWMutex
	bySession map[string][]AttendanceRecord
	byKey     map[string]int // sessionID+"\x00"+memberID -> index in bySession slice
	byMember  map[string]int // memberID -> total records across sessions
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bySession: make(map[string][]AttendanceRecord),
		byKey:     make(map[string]int),
		byMember:  make(map[string]int),
	}
}

func key(sessionID, memberID string) string {
	return sessionID + "\x00" + memberID
}

// TryInsert appends the record unless the (session, member) pair already has
// one, in which case the existing record is returned unchanged.
func (s *MemoryStore) TryInsert(_ context.Context, rec AttendanceRecord) (AttendanceRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(rec.SessionID, rec.MemberID)
	if i, ok := s.byKey[k]; ok {
		return s.bySession[rec.SessionID][i], false, nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.byKey[k] = len(s.bySession[rec.SessionID])
	s.bySession[rec.SessionID] = append(s.bySession[rec.SessionID], rec)
	s.byMember[rec.MemberID]++
	return rec, true, nil
}

// Find returns the record for (sessionID, memberID), or nil.
func (s *MemoryStore) Find(_ context.Context, sessionID, memberID string) (*AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.byKey[key(sessionID, memberID)]; ok {
		rec := s.bySession[sessionID][i]
		return &rec, nil
	}
	return nil, nil
}

// ListForSession returns the session's records in admission order.
func (s *MemoryStore) ListForSession(_ context.Context, sessionID string) ([]AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.bySession[sessionID]
	out := make([]AttendanceRecord, len(recs))
	copy(out, recs)
	return out, nil
}

// CountByStatus tallies the session's records per status.
func (s *MemoryStore) CountByStatus(ctx context.Context, sessionID string) (map[Status]int, error) {
	recs, err := s.ListForSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	counts := make(map[Status]int)
	for _, rec := range recs {
		counts[rec.Status]++
	}
	return counts, nil
}

// HasPriorRecord reports whether the member has any record in any session.
func (s *MemoryStore) HasPriorRecord(_ context.Context, memberID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byMember[memberID] > 0, nil
}
