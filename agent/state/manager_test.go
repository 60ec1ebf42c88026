package state

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/plancanvas/plancanvas/agent/contract"
)

func TestAcquireIsolatesSessions(t *testing.T) {
	t.Parallel()

	m := NewManager(nil)
	ctx := context.Background()

	a, err := m.Acquire(ctx, "alice")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	b, err := m.Acquire(ctx, "bob")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	a.SetPlan(&contractx.EventPlan{Title: "Alice's party"})
	if b.Plan() != nil {
		t.Fatal("sessions must not share state")
	}
	if m.Live() != 2 {
		t.Fatalf("Live() = %d, want 2", m.Live())
	}
}

func TestAcquireReturnsSameLiveSession(t *testing.T) {
	t.Parallel()

	m := NewManager(nil)
	ctx := context.Background()

	first, _ := m.Acquire(ctx, "s-1")
	second, _ := m.Acquire(ctx, "s-1")
	if first != second {
		t.Fatal("repeat acquire must return the same live state")
	}
}

func TestAcquireRejectsEmptySessionID(t *testing.T) {
	t.Parallel()

	m := NewManager(nil)
	if _, err := m.Acquire(context.Background(), "   "); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("error %v must be ErrInvalidSession", err)
	}
}

func TestReleasePersistsAndAcquireRestores(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	m := NewManager(store)
	ctx := context.Background()

	p, _ := m.Acquire(ctx, "s-1")
	p.AppendMessage(contractx.ChatMessage{ID: "m1", Role: contractx.RoleUser, Content: "hello"})
	p.SetPlan(&contractx.EventPlan{Title: "Reunion"})

	if err := m.Release(ctx, "s-1"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if m.Live() != 0 {
		t.Fatal("release must tear the session down")
	}

	revived, err := m.Acquire(ctx, "s-1")
	if err != nil {
		t.Fatalf("re-Acquire: %v", err)
	}
	if revived == p {
		t.Fatal("re-acquire must build a fresh state")
	}
	if len(revived.Messages()) != 1 || revived.Plan() == nil || revived.Plan().Title != "Reunion" {
		t.Fatal("snapshot was not restored")
	}
}

func TestReleaseUnknownSessionIsANoop(t *testing.T) {
	t.Parallel()

	m := NewManager(NewMemoryStore())
	if err := m.Release(context.Background(), "never-acquired"); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	if _, err := store.Load(context.Background(), "missing"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("error %v must be ErrSnapshotNotFound", err)
	}
}

func TestMemoryStoreRejectsEmptySessionID(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	if err := store.Save(context.Background(), &Snapshot{}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("error %v must be ErrInvalidSession", err)
	}
}
