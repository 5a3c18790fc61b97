package session

import "time"

// Conversation log coupling: the log lives inside the session record, so it
// is cleared under the same mutex acquisition that swaps the index handle.
// No interleaving can observe an old log paired with a new handle.

func appendTurnLocked(rec *record, role, text string, maxTurns int) {
	rec.turns = append(rec.turns, Turn{Role: role, Text: text, At: time.Now()})
	if n := len(rec.turns); n > maxTurns {
		// Drop oldest first. Copy to a fresh backing array so the trimmed
		// prefix does not pin memory.
		trimmed := make([]Turn, maxTurns)
		copy(trimmed, rec.turns[n-maxTurns:])
		rec.turns = trimmed
	}
}

// AppendTurn adds a turn to the session's conversation log. Query paths that
// hold a Lease should use Lease.AppendTurn instead so a mid-query replace
// cannot divert their turns into a newer record's log.
func (s *Store) AppendTurn(id, role, text string) error {
	s.mu.Lock()
	rec := s.records[id]
	if rec == nil || !rec.live {
		_, dead := s.tombs.Get(id)
		s.mu.Unlock()
		if dead {
			return ErrSessionExpired
		}
		return ErrNoDocumentUploaded
	}
	appendTurnLocked(rec, role, text, s.maxTurns)
	s.mu.Unlock()
	return nil
}

// History returns a copy of the session's conversation log, oldest first.
// Nil for absent or invalidated sessions.
func (s *Store) History(id string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.records[id]
	if rec == nil || !rec.live {
		return nil
	}
	out := make([]Turn, len(rec.turns))
	copy(out, rec.turns)
	return out
}
