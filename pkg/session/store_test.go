package session

import (
	"sync"
	"sync/atomic"
	"testing"
)

// fakeIndex counts Release calls so tests can assert exactly-once semantics.
type fakeIndex struct {
	name     string
	releases atomic.Int32
}

func (f *fakeIndex) Release() { f.releases.Add(1) }

func newTestStore() *Store {
	return NewStore(Options{})
}

func TestCreateOrReplaceThenLookup(t *testing.T) {
	s := newTestStore()
	id := NewSessionID()
	hA := &fakeIndex{name: "A"}
	hB := &fakeIndex{name: "B"}

	replaced, err := s.CreateOrReplace(id, hA)
	if err != nil {
		t.Fatalf("CreateOrReplace(A) error: %v", err)
	}
	if replaced {
		t.Errorf("first install reported replaced")
	}

	got, ok := s.Lookup(id)
	if !ok || got != hA {
		t.Fatalf("Lookup = %v, %v; want handle A", got, ok)
	}

	replaced, err = s.CreateOrReplace(id, hB)
	if err != nil {
		t.Fatalf("CreateOrReplace(B) error: %v", err)
	}
	if !replaced {
		t.Errorf("second install did not report replaced")
	}

	// B is visible; A is never observable again.
	for i := 0; i < 100; i++ {
		got, ok := s.Lookup(id)
		if !ok || got != hB {
			t.Fatalf("Lookup after replace = %v, %v; want handle B", got, ok)
		}
	}
	if n := hA.releases.Load(); n != 1 {
		t.Errorf("old handle released %d times, want 1", n)
	}
	if n := hB.releases.Load(); n != 0 {
		t.Errorf("live handle released %d times, want 0", n)
	}
}

func TestLookupUnknownSession(t *testing.T) {
	s := newTestStore()
	if _, ok := s.Lookup("nope"); ok {
		t.Errorf("Lookup of unknown id reported a handle")
	}
}

func TestCreateOrReplaceNilIndex(t *testing.T) {
	s := newTestStore()
	if _, err := s.CreateOrReplace(NewSessionID(), nil); err != ErrNilIndex {
		t.Errorf("err = %v, want ErrNilIndex", err)
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	s := newTestStore()
	id := NewSessionID()
	h := &fakeIndex{}
	if _, err := s.CreateOrReplace(id, h); err != nil {
		t.Fatal(err)
	}

	meta, ok := s.Invalidate(id)
	if !ok {
		t.Fatal("first Invalidate reported nothing to clear")
	}
	if meta.SessionID != id {
		t.Errorf("meta.SessionID = %q, want %q", meta.SessionID, id)
	}
	if n := h.releases.Load(); n != 1 {
		t.Errorf("handle released %d times, want 1", n)
	}

	// Second invalidate is a no-op, not an error, and no double release.
	if _, ok := s.Invalidate(id); ok {
		t.Errorf("second Invalidate reported a record")
	}
	if _, ok := s.Invalidate("never-existed"); ok {
		t.Errorf("Invalidate of unknown id reported a record")
	}
	if n := h.releases.Load(); n != 1 {
		t.Errorf("handle released %d times after double invalidate, want 1", n)
	}
}

func TestNoResurrection(t *testing.T) {
	s := newTestStore()
	id := NewSessionID()
	if _, err := s.CreateOrReplace(id, &fakeIndex{}); err != nil {
		t.Fatal(err)
	}
	s.Invalidate(id)

	if _, ok := s.Lookup(id); ok {
		t.Fatalf("Lookup returned a handle for an invalidated id")
	}
	if _, err := s.CreateOrReplace(id, &fakeIndex{}); err != ErrSessionInvalidated {
		t.Fatalf("CreateOrReplace on retired id: err = %v, want ErrSessionInvalidated", err)
	}
	if _, ok := s.Lookup(id); ok {
		t.Fatalf("retired id became live again")
	}
}

func TestSnapshot(t *testing.T) {
	s := newTestStore()
	id := NewSessionID()

	if _, ok := s.Snapshot(id); ok {
		t.Fatalf("Snapshot of unknown id reported state")
	}

	if _, err := s.CreateOrReplace(id, &fakeIndex{}); err != nil {
		t.Fatal(err)
	}
	snap, ok := s.Snapshot(id)
	if !ok || !snap.Live || snap.Expired {
		t.Fatalf("Snapshot after create = %+v, %v; want live", snap, ok)
	}
	if snap.CreatedAt.IsZero() {
		t.Errorf("Snapshot.CreatedAt is zero")
	}

	s.Invalidate(id)
	snap, ok = s.Snapshot(id)
	if !ok || snap.Live || !snap.Expired {
		t.Fatalf("Snapshot after invalidate = %+v, %v; want expired", snap, ok)
	}
}

// Exactly one winner under K racing replaces; the K-1 losers are released
// exactly once each, the winner not at all.
func TestConcurrentReplaceExactlyOneWinner(t *testing.T) {
	s := newTestStore()
	id := NewSessionID()

	const k = 32
	handles := make([]*fakeIndex, k)
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		handles[i] = &fakeIndex{}
		wg.Add(1)
		go func(h *fakeIndex) {
			defer wg.Done()
			if _, err := s.CreateOrReplace(id, h); err != nil {
				t.Errorf("CreateOrReplace error: %v", err)
			}
		}(handles[i])
	}
	wg.Wait()

	winner, ok := s.Lookup(id)
	if !ok {
		t.Fatal("no live record after racing replaces")
	}

	var winners, released int
	for _, h := range handles {
		n := h.releases.Load()
		switch {
		case h == winner:
			winners++
			if n != 0 {
				t.Errorf("winner released %d times, want 0", n)
			}
		case n == 1:
			released++
		default:
			t.Errorf("loser released %d times, want 1", n)
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want 1", winners)
	}
	if released != k-1 {
		t.Errorf("released losers = %d, want %d", released, k-1)
	}
}

// Interleaved lookups against two sessions must never cross handles.
func TestIsolationAcrossSessions(t *testing.T) {
	s := newTestStore()
	id1, id2 := NewSessionID(), NewSessionID()
	h1, h2 := &fakeIndex{name: "h1"}, &fakeIndex{name: "h2"}

	if _, err := s.CreateOrReplace(id1, h1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateOrReplace(id2, h2); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				if got, ok := s.Lookup(id1); !ok || got != h1 {
					t.Errorf("s1 lookup returned %v, want h1", got)
				}
			} else {
				if got, ok := s.Lookup(id2); !ok || got != h2 {
					t.Errorf("s2 lookup returned %v, want h2", got)
				}
			}
		}(i)
	}
	wg.Wait()
}
