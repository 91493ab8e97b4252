package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry is the single source of truth for whether a session is still
// valid. Sessions are append-only; nothing mutates one after creation.
type Registry interface {
	Create(ctx context.Context, serviceName, scopeID string, opensAt time.Time, duration time.Duration) (Session, error)
	Lookup(ctx context.Context, id string) (Session, error)
	IsValid(ctx context.Context, id string, now time.Time) (bool, error)
	TimeRemaining(ctx context.Context, id string, now time.Time) (time.Duration, error)
}

// MemoryRegistry keeps sessions in a process-local map. Suitable for a single
// API instance; multi-instance deployments use PostgresRegistry.
type MemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{sessions: make(map[string]Session)}
}

// Create constructs and stores a new session.
func (r *MemoryRegistry) Create(_ context.Context, serviceName, scopeID string, opensAt time.Time, duration time.Duration) (Session, error) {
	if duration <= 0 {
		return Session{}, ErrInvalidDuration
	}
	s := Session{
		ID:          uuid.NewString(),
		ServiceName: serviceName,
		ScopeID:     scopeID,
		OpensAt:     opensAt.UTC(),
		ExpiresAt:   opensAt.Add(duration).UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s, nil
}

// Lookup returns the session for id.
func (r *MemoryRegistry) Lookup(_ context.Context, id string) (Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

// IsValid reports whether the session exists and now falls inside its window.
func (r *MemoryRegistry) IsValid(ctx context.Context, id string, now time.Time) (bool, error) {
	s, err := r.Lookup(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return s.ValidAt(now), nil
}

// TimeRemaining returns max(0, expiresAt - now) for the session.
func (r *MemoryRegistry) TimeRemaining(ctx context.Context, id string, now time.Time) (time.Duration, error) {
	s, err := r.Lookup(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.Remaining(now), nil
}
