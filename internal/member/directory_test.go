package member

import (
	"context"
	"errors"
	"testing"
)

func TestUpsertRequiresID(t *testing.T) {
	d := NewMemoryDirectory()
	if err := d.Upsert(context.Background(), Member{DisplayName: "Ada"}); err == nil {
		t.Fatal("expected error for member without id")
	}
}

func TestGetUnknownMember(t *testing.T) {
	d := NewMemoryDirectory()
	if _, err := d.Get(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get err = %v, want ErrNotFound", err)
	}
	if _, err := d.DisplayName(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DisplayName err = %v, want ErrNotFound", err)
	}
}

func TestUpsertThenGet(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()
	if err := d.Upsert(ctx, Member{ID: "m1", DisplayName: "Ada", ScopeID: "branch-1"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	m, err := d.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m.DisplayName != "Ada" || m.ScopeID != "branch-1" {
		t.Fatalf("member = %+v", m)
	}
	if m.CreatedAt.IsZero() {
		t.Fatal("Upsert should stamp CreatedAt")
	}

	name, err := d.DisplayName(ctx, "m1")
	if err != nil || name != "Ada" {
		t.Fatalf("DisplayName = %q, %v", name, err)
	}

	// Upsert replaces the profile for an existing id.
	if err := d.Upsert(ctx, Member{ID: "m1", DisplayName: "Ada L.", ScopeID: "branch-2"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	m, err = d.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m.DisplayName != "Ada L." || m.ScopeID != "branch-2" {
		t.Fatalf("member after update = %+v", m)
	}
}
