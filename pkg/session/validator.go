package session

import "sync"

// Lease is a guaranteed-live handle acquired for one query. It pins the
// record it was taken from: a concurrent replace or invalidate marks the
// record dead but defers the handle's release until the last lease closes.
// Close is idempotent and must be called when the query completes.
type Lease struct {
	store *Store
	rec   *record
	once  sync.Once
}

func (l *Lease) SessionID() string { return l.rec.id }

// Index returns the handle this lease pins. Immutable; safe to use until Close.
func (l *Lease) Index() Index { return l.rec.index }

// AppendTurn records a conversation turn against the leased record. If the
// session was replaced or invalidated mid-query the turn is refused rather
// than written into a newer record's log.
func (l *Lease) AppendTurn(role, text string) error {
	s := l.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if !l.rec.live {
		return ErrSessionExpired
	}
	appendTurnLocked(l.rec, role, text, s.maxTurns)
	return nil
}

// History returns a copy of the leased record's conversation log, oldest
// first. Reading through the lease rather than by id keeps the log paired
// with the handle this lease pins: a concurrent replace installs a fresh
// record under the same id, and its turns must never leak into a query
// running against the old document.
func (l *Lease) History() []Turn {
	s := l.store
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Turn, len(l.rec.turns))
	copy(out, l.rec.turns)
	return out
}

func (l *Lease) Close() {
	l.once.Do(func() {
		s := l.store
		s.mu.Lock()
		l.rec.refs--
		var release Index
		if !l.rec.live && l.rec.refs == 0 && !l.rec.released {
			l.rec.released = true
			release = l.rec.index
		}
		s.mu.Unlock()

		if release != nil {
			release.Release()
		}
	})
}

// AcquireForQuery is the single choke-point every query operation goes
// through: liveness check and handle retrieval as one atomic step, so a
// racing replace cannot slip between check and use.
//
// Failure reasons are precise: ErrNoDocumentUploaded for identifiers that
// never had a live record, ErrSessionExpired for identifiers that did but
// have since been invalidated.
func (s *Store) AcquireForQuery(id string) (*Lease, error) {
	s.mu.Lock()
	rec := s.records[id]
	if rec == nil || !rec.live {
		_, dead := s.tombs.Get(id)
		s.mu.Unlock()
		if dead {
			return nil, ErrSessionExpired
		}
		return nil, ErrNoDocumentUploaded
	}
	rec.refs++
	s.mu.Unlock()

	return &Lease{store: s, rec: rec}, nil
}
