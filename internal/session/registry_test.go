package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateRejectsNonPositiveDuration(t *testing.T) {
	reg := NewMemoryRegistry()
	for _, d := range []time.Duration{0, -time.Hour} {
		if _, err := reg.Create(context.Background(), "svc", "b1", time.Now(), d); !errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("Create with duration %v: err = %v, want ErrInvalidDuration", d, err)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	reg := NewMemoryRegistry()
	if _, err := reg.Lookup(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Lookup err = %v, want ErrNotFound", err)
	}
}

func TestValidityBoundsAreInclusive(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	opens := time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC)
	sess, err := reg.Create(ctx, "svc", "b1", opens, 2*time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	cases := []struct {
		at   time.Time
		want bool
	}{
		{sess.OpensAt.Add(-time.Second), false},
		{sess.OpensAt, true},
		{sess.OpensAt.Add(time.Hour), true},
		{sess.ExpiresAt, true},
		{sess.ExpiresAt.Add(time.Second), false},
	}
	for _, tc := range cases {
		valid, err := reg.IsValid(ctx, sess.ID, tc.at)
		if err != nil {
			t.Fatalf("IsValid: %v", err)
		}
		if valid != tc.want {
			t.Fatalf("IsValid at %v = %v, want %v", tc.at, valid, tc.want)
		}
	}

	if valid, _ := reg.IsValid(ctx, "missing", sess.OpensAt); valid {
		t.Fatal("IsValid for missing session should be false")
	}
}

func TestTimeRemainingClampsAtZero(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	opens := time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC)
	sess, err := reg.Create(ctx, "svc", "b1", opens, time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	remaining, err := reg.TimeRemaining(ctx, sess.ID, opens.Add(15*time.Minute))
	if err != nil {
		t.Fatalf("TimeRemaining: %v", err)
	}
	if remaining != 45*time.Minute {
		t.Fatalf("remaining = %v, want 45m", remaining)
	}

	remaining, err = reg.TimeRemaining(ctx, sess.ID, opens.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("TimeRemaining: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("remaining after expiry = %v, want 0", remaining)
	}

	if _, err := reg.TimeRemaining(ctx, "missing", opens); !errors.Is(err, ErrNotFound) {
		t.Fatalf("TimeRemaining for missing session err = %v, want ErrNotFound", err)
	}
}

func TestSessionWindowDerivedFromDuration(t *testing.T) {
	reg := NewMemoryRegistry()
	opens := time.Date(2025, 3, 9, 11, 0, 0, 0, time.UTC)
	sess, err := reg.Create(context.Background(), "svc", "b1", opens, 2*time.Hour)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !sess.ExpiresAt.Equal(opens.Add(2 * time.Hour)) {
		t.Fatalf("expiresAt = %v", sess.ExpiresAt)
	}
	if !sess.OpensAt.Before(sess.ExpiresAt) {
		t.Fatal("opensAt must precede expiresAt")
	}
	if sess.ID == "" || sess.CreatedAt.IsZero() {
		t.Fatalf("session not fully populated: %+v", sess)
	}
}
