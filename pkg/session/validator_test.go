package session

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
)

func TestAcquireForQueryUnknown(t *testing.T) {
	s := newTestStore()
	_, err := s.AcquireForQuery("unknown")
	if !errors.Is(err, ErrNoDocumentUploaded) {
		t.Fatalf("err = %v, want ErrNoDocumentUploaded", err)
	}
}

func TestAcquireForQueryExpired(t *testing.T) {
	s := newTestStore()
	id := NewSessionID()
	if _, err := s.CreateOrReplace(id, &fakeIndex{}); err != nil {
		t.Fatal(err)
	}
	s.Invalidate(id)

	_, err := s.AcquireForQuery(id)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
}

func TestLeasePinsHandleAcrossReplace(t *testing.T) {
	s := newTestStore()
	id := NewSessionID()
	hA := &fakeIndex{name: "A"}
	hB := &fakeIndex{name: "B"}
	if _, err := s.CreateOrReplace(id, hA); err != nil {
		t.Fatal(err)
	}

	lease, err := s.AcquireForQuery(id)
	if err != nil {
		t.Fatal(err)
	}
	if lease.Index() != hA {
		t.Fatalf("lease holds %v, want A", lease.Index())
	}

	// Replace while the query is in flight: A must not be released yet.
	if _, err := s.CreateOrReplace(id, hB); err != nil {
		t.Fatal(err)
	}
	if n := hA.releases.Load(); n != 0 {
		t.Fatalf("A released %d times while leased, want 0", n)
	}

	// New queries see B, the in-flight lease keeps A.
	if got, _ := s.Lookup(id); got != hB {
		t.Fatalf("Lookup = %v, want B", got)
	}
	if lease.Index() != hA {
		t.Fatalf("lease switched handles mid-flight")
	}

	// Last lease closing drives the deferred release exactly once.
	lease.Close()
	lease.Close() // idempotent
	if n := hA.releases.Load(); n != 1 {
		t.Fatalf("A released %d times after lease close, want 1", n)
	}
	if n := hB.releases.Load(); n != 0 {
		t.Fatalf("B released %d times, want 0", n)
	}
}

func TestLeaseReleaseAfterLastOfManyCloses(t *testing.T) {
	s := newTestStore()
	id := NewSessionID()
	h := &fakeIndex{}
	if _, err := s.CreateOrReplace(id, h); err != nil {
		t.Fatal(err)
	}

	leases := make([]*Lease, 5)
	for i := range leases {
		l, err := s.AcquireForQuery(id)
		if err != nil {
			t.Fatal(err)
		}
		leases[i] = l
	}

	s.Invalidate(id)
	for i, l := range leases {
		if n := h.releases.Load(); n != 0 {
			t.Fatalf("released after %d of %d closes", i, len(leases))
		}
		l.Close()
	}
	if n := h.releases.Load(); n != 1 {
		t.Fatalf("released %d times after all closes, want 1", n)
	}
}

func TestLeaseAppendTurnRefusedAfterReplace(t *testing.T) {
	s := newTestStore()
	id := NewSessionID()
	if _, err := s.CreateOrReplace(id, &fakeIndex{}); err != nil {
		t.Fatal(err)
	}

	lease, err := s.AcquireForQuery(id)
	if err != nil {
		t.Fatal(err)
	}
	defer lease.Close()

	if err := lease.AppendTurn("user", "first question"); err != nil {
		t.Fatalf("AppendTurn on live lease: %v", err)
	}

	// A replace lands mid-query. The lease's turns must not be written into
	// the fresh record's (empty) log.
	if _, err := s.CreateOrReplace(id, &fakeIndex{}); err != nil {
		t.Fatal(err)
	}
	if err := lease.AppendTurn("assistant", "stale answer"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("AppendTurn after replace: err = %v, want ErrSessionExpired", err)
	}
	if turns := s.History(id); len(turns) != 0 {
		t.Fatalf("fresh record's log has %d turns, want 0", len(turns))
	}
}

func TestLeaseHistoryStaysWithLeasedRecord(t *testing.T) {
	s := newTestStore()
	id := NewSessionID()
	hA := &fakeIndex{name: "A"}
	hB := &fakeIndex{name: "B"}

	if _, err := s.CreateOrReplace(id, hA); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendTurn(id, "user", "question about document A"); err != nil {
		t.Fatal(err)
	}

	lease, err := s.AcquireForQuery(id)
	if err != nil {
		t.Fatal(err)
	}
	defer lease.Close()

	if turns := lease.History(); len(turns) != 1 || turns[0].Text != "question about document A" {
		t.Fatalf("pre-replace lease history = %v, want the A turn", turns)
	}

	// A replace lands after acquisition, and another caller starts a
	// conversation about the new document under the same id.
	if _, err := s.CreateOrReplace(id, hB); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendTurn(id, "user", "question about document B"); err != nil {
		t.Fatal(err)
	}

	// The lease still pins handle A, so its history must not show B's log:
	// an old handle paired with the new conversation is a cross-document leak.
	for _, turn := range lease.History() {
		if turn.Text == "question about document B" {
			t.Fatal("lease history leaked a turn from the replacement session")
		}
	}
	if lease.Index() != hA {
		t.Fatalf("lease index changed across replace")
	}

	if turns := s.History(id); len(turns) != 1 || turns[0].Text != "question about document B" {
		t.Fatalf("live record's history = %v, want only the B turn", turns)
	}
}

// Interleave 100 queries randomly against two sessions; every acquired handle
// must match the session it was asked for.
func TestRandomInterleavedQueries(t *testing.T) {
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
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			id, want := id1, Index(h1)
			if r.Intn(2) == 1 {
				id, want = id2, h2
			}
			lease, err := s.AcquireForQuery(id)
			if err != nil {
				t.Errorf("AcquireForQuery(%s): %v", id, err)
				return
			}
			defer lease.Close()
			if lease.Index() != want {
				t.Errorf("session %s returned foreign handle", id)
			}
		}(int64(i))
	}
	wg.Wait()
}

// Random interleaving of replaces and queries on one session: an acquired
// handle is always one that was installed for that id, and once a given
// handle has been observed superseded it is never observed again.
func TestReplaceLinearizability(t *testing.T) {
	s := newTestStore()
	id := NewSessionID()
	h0 := &fakeIndex{}
	if _, err := s.CreateOrReplace(id, h0); err != nil {
		t.Fatal(err)
	}

	installed := sync.Map{}
	installed.Store(Index(h0), true)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := &fakeIndex{}
			installed.Store(Index(h), true)
			if _, err := s.CreateOrReplace(id, h); err != nil {
				t.Errorf("replace: %v", err)
			}
		}()
	}
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := s.AcquireForQuery(id)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			if _, ok := installed.Load(lease.Index()); !ok {
				t.Errorf("acquired a handle that was never installed for this id")
			}
			lease.Close()
		}()
	}
	wg.Wait()

	// After quiescence exactly one handle is reachable.
	final, ok := s.Lookup(id)
	if !ok {
		t.Fatal("no live record after interleaving")
	}
	if _, known := installed.Load(final); !known {
		t.Fatal("final handle was never installed")
	}
}
