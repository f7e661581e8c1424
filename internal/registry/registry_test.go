package registry

import (
	"sync"
	"testing"

	"github.com/alaska-icy-giant/simbridge/internal/models"
)

func newTestSession(deviceID int64) *Session {
	return &Session{DeviceID: deviceID, Role: models.RoleHost}
}

func TestBind_NewDeviceHasNoPredecessor(t *testing.T) {
	r := New()
	s := newTestSession(1)

	prev := r.Bind(1, s)
	if prev != nil {
		t.Fatalf("expected no predecessor, got %v", prev)
	}

	got, ok := r.Lookup(1)
	if !ok || got != s {
		t.Fatal("expected lookup to return the bound session")
	}
}

func TestBind_EvictsPredecessor(t *testing.T) {
	r := New()
	s1 := newTestSession(1)
	s2 := newTestSession(1)

	r.Bind(1, s1)
	prev := r.Bind(1, s2)

	if prev != s1 {
		t.Fatal("expected s1 to be returned as the evicted predecessor")
	}

	got, ok := r.Lookup(1)
	if !ok || got != s2 {
		t.Fatal("expected lookup to return s2 after rebind")
	}
}

func TestUnbindIf_OnlyRemovesMatchingSession(t *testing.T) {
	r := New()
	s1 := newTestSession(1)
	s2 := newTestSession(1)

	r.Bind(1, s1)
	r.Bind(1, s2) // s1 evicted but its read loop doesn't know yet

	// s1's cleanup path fires unbind_if(1, s1) -- must not remove s2.
	r.UnbindIf(1, s1)

	got, ok := r.Lookup(1)
	if !ok || got != s2 {
		t.Fatal("UnbindIf with a stale session must not evict the current one")
	}
}

func TestUnbindIf_RemovesMatchingSession(t *testing.T) {
	r := New()
	s := newTestSession(1)
	r.Bind(1, s)

	r.UnbindIf(1, s)

	if _, ok := r.Lookup(1); ok {
		t.Fatal("expected session to be removed")
	}
}

func TestLookup_MissingDevice(t *testing.T) {
	r := New()
	if _, ok := r.Lookup(99); ok {
		t.Fatal("expected miss for unbound device")
	}
}

func TestIsOnline(t *testing.T) {
	r := New()
	if r.IsOnline(1) {
		t.Fatal("expected offline before bind")
	}
	r.Bind(1, newTestSession(1))
	if !r.IsOnline(1) {
		t.Fatal("expected online after bind")
	}
}

func TestRegistry_AtMostOneEntryPerDevice(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Bind(1, newTestSession(1))
		}()
	}
	wg.Wait()

	count := 0
	r.mu.Lock()
	count = len(r.sessions)
	r.mu.Unlock()
	if count != 1 {
		t.Fatalf("expected exactly 1 entry, got %d", count)
	}
}
