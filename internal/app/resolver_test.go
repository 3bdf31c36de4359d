package app_test

import (
	"context"
	"testing"

	"github.com/livescribe/livescribe/internal/app"
	"github.com/livescribe/livescribe/internal/domain"
)

func TestPlaceholderFallback(t *testing.T) {
	s := openTestStore(t)
	r := app.NewOwnershipResolver(s, s)
	ctx := context.Background()

	m, real, err := r.EnsureMeeting(ctx, "ext-1", "", "")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if real {
		t.Fatal("meeting without operator must not have a real owner")
	}
	placeholder, _ := s.PlaceholderUser(ctx)
	if m.OwnerID != placeholder.ID {
		t.Fatalf("owner = %s, want placeholder %s", m.OwnerID, placeholder.ID)
	}
}

func TestUnresolvableOperatorFallsBack(t *testing.T) {
	s := openTestStore(t)
	r := app.NewOwnershipResolver(s, s)
	ctx := context.Background()

	_, real, err := r.EnsureMeeting(ctx, "ext-1", "", "nobody")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if real {
		t.Fatal("unresolvable operator must fall back to the placeholder")
	}
}

func TestEnsureMeetingIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	r := app.NewOwnershipResolver(s, s)
	ctx := context.Background()

	a, _, err := r.EnsureMeeting(ctx, "ext-1", "sync", "")
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	b, _, err := r.EnsureMeeting(ctx, "ext-1", "other hint", "")
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if a.ID != b.ID {
		t.Fatalf("got two meetings %s and %s for one session", a.ID, b.ID)
	}
}

func TestReassignExactlyOnce(t *testing.T) {
	s := openTestStore(t)
	r := app.NewOwnershipResolver(s, s)
	ctx := context.Background()

	u1, _ := domain.NewUser("Uma", "op-1")
	u2, _ := domain.NewUser("Vik", "op-2")
	if err := s.CreateUser(ctx, u1); err != nil {
		t.Fatalf("seed u1: %v", err)
	}
	if err := s.CreateUser(ctx, u2); err != nil {
		t.Fatalf("seed u2: %v", err)
	}

	m, _, err := r.EnsureMeeting(ctx, "ext-1", "", "")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	moved, err := r.MaybeReassign(ctx, m.ID, "op-1")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if !moved {
		t.Fatal("first resolvable operator must take ownership")
	}

	// A different operator later must not steal the meeting.
	moved, err = r.MaybeReassign(ctx, m.ID, "op-2")
	if err != nil {
		t.Fatalf("second reassign: %v", err)
	}
	if moved {
		t.Fatal("meeting owned by a real user was reassigned")
	}

	got, _ := s.MeetingByID(ctx, m.ID)
	if got.OwnerID != u1.ID {
		t.Fatalf("owner = %s, want %s", got.OwnerID, u1.ID)
	}
}

func TestReassignWithoutOperatorIsNoOp(t *testing.T) {
	s := openTestStore(t)
	r := app.NewOwnershipResolver(s, s)
	ctx := context.Background()

	m, _, err := r.EnsureMeeting(ctx, "ext-1", "", "")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	moved, err := r.MaybeReassign(ctx, m.ID, "")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if moved {
		t.Fatal("empty operator id must not reassign")
	}
}
