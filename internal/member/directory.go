package member

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when no member exists for the given id.
var ErrNotFound = errors.New("member not found")

// Member is a registered congregation member. Profile photos and contact
// details live outside the check-in core; the feed only needs a display name.
type Member struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	ScopeID     string    `json:"scope_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Directory resolves and registers members.
type Directory interface {
	DisplayName(ctx context.Context, memberID string) (string, error)
	Get(ctx context.Context, memberID string) (Member, error)
	Upsert(ctx context.Context, m Member) error
}

// MemoryDirectory is a process-local directory for dev and testing.
type MemoryDirectory struct {
	mu      sync.RWMutex
	members map[string]Member
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{members: make(map[string]Member)}
}

// DisplayName returns the member's display name.
func (d *MemoryDirectory) DisplayName(ctx context.Context, memberID string) (string, error) {
	m, err := d.Get(ctx, memberID)
	if err != nil {
		return "", err
	}
	return m.DisplayName, nil
}

// Get returns the member for memberID.
func (d *MemoryDirectory) Get(_ context.Context, memberID string) (Member, error) {
	d.mu.RLock()
	m, ok := d.members[memberID]
	d.mu.RUnlock()
	if !ok {
		return Member{}, ErrNotFound
	}
	return m, nil
}

// Upsert creates or replaces a member.
func (d *MemoryDirectory) Upsert(_ context.Context, m Member) error {
	if m.ID == "" {
		return errors.New("member id required")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	d.mu.Lock()
	d.members[m.ID] = m
	d.mu.Unlock()
	return nil
}
