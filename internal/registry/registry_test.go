package registry

import (
	"testing"

	"github.com/alanyoungcy/natsgw/internal/domain"
)

func TestAddSubscriptionAddedFlag(t *testing.T) {
	r := New()
	c := domain.NewClient("127.0.0.1:1")
	r.RegisterClient(c)

	if added := r.AddSubscription("a.b", c); !added {
		t.Fatal("expected first subscription to report added=true")
	}
	if added := r.AddSubscription("a.b", c); added {
		t.Fatal("expected duplicate subscription to report added=false")
	}
}

func TestRemoveSubscriptionEmptiedFlag(t *testing.T) {
	r := New()
	c1 := domain.NewClient("127.0.0.1:1")
	c2 := domain.NewClient("127.0.0.1:2")
	r.RegisterClient(c1)
	r.RegisterClient(c2)

	r.AddSubscription("s", c1)
	r.AddSubscription("s", c2)

	removed, emptied := r.RemoveSubscription("s", c1)
	if !removed || emptied {
		t.Fatalf("expected removed=true, emptied=false with one subscriber left; got removed=%v emptied=%v", removed, emptied)
	}

	removed, emptied = r.RemoveSubscription("s", c2)
	if !removed || !emptied {
		t.Fatalf("expected removed=true, emptied=true on last subscriber; got removed=%v emptied=%v", removed, emptied)
	}

	if got := r.SubjectCount(); got != 0 {
		t.Errorf("expected no subjects to persist after emptying, got %d", got)
	}
}

func TestRemoveSubscriptionUnknownPair(t *testing.T) {
	r := New()
	c := domain.NewClient("127.0.0.1:1")
	removed, emptied := r.RemoveSubscription("never-subscribed", c)
	if removed || emptied {
		t.Fatalf("expected no-op for unknown (subject, client) pair, got removed=%v emptied=%v", removed, emptied)
	}
}

func TestRemoveClientSweep(t *testing.T) {
	r := New()
	c1 := domain.NewClient("127.0.0.1:1")
	c2 := domain.NewClient("127.0.0.1:2")
	r.RegisterClient(c1)
	r.RegisterClient(c2)

	r.AddSubscription("a", c1)
	r.AddSubscription("b", c1)
	r.AddSubscription("b", c2)

	removed, emptied := r.RemoveClient(c1)
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed subjects, got %d: %v", len(removed), removed)
	}
	if len(emptied) != 1 || emptied[0] != "a" {
		t.Fatalf("expected only 'a' to empty (b still has c2), got %v", emptied)
	}

	if subs := r.SnapshotSubscribers("b"); len(subs) != 1 || subs[0] != c2 {
		t.Fatalf("expected b to still have c2 as sole subscriber, got %v", subs)
	}
}

func TestSnapshotSubscribersIsACopy(t *testing.T) {
	r := New()
	c := domain.NewClient("127.0.0.1:1")
	r.RegisterClient(c)
	r.AddSubscription("s", c)

	snap := r.SnapshotSubscribers("s")
	if len(snap) != 1 {
		t.Fatalf("expected 1 subscriber, got %d", len(snap))
	}

	// Mutating the registry after taking the snapshot must not affect it.
	r.RemoveSubscription("s", c)
	if len(snap) != 1 {
		t.Fatalf("snapshot must not reflect later mutations, got %d entries", len(snap))
	}
}

func TestSnapshotSubscribersUnknownSubjectIsNil(t *testing.T) {
	r := New()
	if subs := r.SnapshotSubscribers("nobody.home"); subs != nil {
		t.Errorf("expected nil for an unknown subject, got %v", subs)
	}
}

func TestRefCountMatchesSubscriberSetSize(t *testing.T) {
	r := New()
	c1 := domain.NewClient("127.0.0.1:1")
	c2 := domain.NewClient("127.0.0.1:2")
	r.RegisterClient(c1)
	r.RegisterClient(c2)

	r.AddSubscription("s", c1)
	r.AddSubscription("s", c2)

	if got := r.RefCount("s"); got != 2 {
		t.Errorf("expected refcount 2, got %d", got)
	}

	r.RemoveSubscription("s", c1)
	if got := r.RefCount("s"); got != 1 {
		t.Errorf("expected refcount 1 after one removal, got %d", got)
	}
}

func TestSubjectsForClient(t *testing.T) {
	r := New()
	c := domain.NewClient("127.0.0.1:1")
	r.RegisterClient(c)

	if got := r.SubjectsForClient(c); got != nil {
		t.Fatalf("expected nil subject set for a fresh client, got %v", got)
	}

	r.AddSubscription("a", c)
	r.AddSubscription("b", c)

	got := r.SubjectsForClient(c)
	if len(got) != 2 {
		t.Fatalf("expected 2 subjects, got %v", got)
	}
	seen := map[string]bool{}
	for _, s := range got {
		seen[s] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("expected {a, b}, got %v", got)
	}

	r.RemoveSubscription("a", c)
	if got := r.SubjectsForClient(c); len(got) != 1 || got[0] != "b" {
		t.Fatalf("expected only 'b' left after removing 'a', got %v", got)
	}
}

func TestRegisterClientIsIdempotent(t *testing.T) {
	r := New()
	c := domain.NewClient("127.0.0.1:1")
	r.RegisterClient(c)
	r.RegisterClient(c)
	if got := r.ClientCount(); got != 1 {
		t.Errorf("expected registering the same client twice to count once, got %d", got)
	}
}
