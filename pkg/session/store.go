package session

import (
	"errors"
	"sync"
	"time"

	"pdf-qa-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

var (
	// ErrNoDocumentUploaded means the session id has never mapped to a live record.
	ErrNoDocumentUploaded = errors.New("no document uploaded for this session")

	// ErrSessionExpired means the session id was live once but has since been
	// invalidated (explicit reset or a racing replace).
	ErrSessionExpired = errors.New("session expired or cleared")

	// ErrSessionInvalidated means a caller tried to install a new document under
	// an identifier that was explicitly invalidated. Identifiers are never
	// resurrected; the caller must mint a fresh one.
	ErrSessionInvalidated = errors.New("session id is retired and cannot be reused")

	// ErrNilIndex is a programming error: installing a session without a handle.
	ErrNilIndex = errors.New("nil index handle")
)

// Index is an opaque reference to one document's derived searchable
// representation. Implementations must be immutable once constructed.
// The store owns the handle from the moment CreateOrReplace accepts it and
// guarantees Release is called exactly once, after the last in-flight query
// holding the handle completes.
type Index interface {
	Release()
}

// Turn is one conversation entry, insertion order significant.
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// SessionMeta is returned by Invalidate as confirmation of what was cleared.
type SessionMeta struct {
	SessionID string
	CreatedAt time.Time
	Turns     int
}

// Snapshot is a consistent point-in-time view for the status endpoint.
// Expired is set for identifiers that were invalidated and are still within
// the tombstone retention window.
type Snapshot struct {
	SessionID string
	Live      bool
	Expired   bool
	CreatedAt time.Time
	Turns     int
}

// record is the unit of isolation: one document's handle plus its
// conversation log. All fields are guarded by the owning store's mutex.
// Replaced records stay reachable through outstanding leases until the last
// lease closes; the map only ever points at the current record.
type record struct {
	id        string
	index     Index
	createdAt time.Time
	live      bool
	refs      int // in-flight leases on this record
	released  bool
	turns     []Turn
}

type Options struct {
	Logger       logger.ILogger
	MaxTurns     int           // conversation turns retained per session (default 10)
	TombstoneTTL time.Duration // how long invalidated ids stay distinguishable (default 24h)
}

const (
	defaultMaxTurns     = 10
	defaultTombstoneTTL = 24 * time.Hour
	tombstonePurge      = 10 * time.Minute
)

// Store is the single source of truth for which index handle is authoritative
// for which session identifier. Safe for arbitrary concurrent callers.
// Instantiate one per process (or per test); there is no ambient global.
type Store struct {
	mu       sync.Mutex
	records  map[string]*record
	tombs    *cache.Cache // invalidated ids, TTL-bounded
	logger   logger.ILogger
	maxTurns int
}

func NewStore(opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = defaultMaxTurns
	}
	if opts.TombstoneTTL <= 0 {
		opts.TombstoneTTL = defaultTombstoneTTL
	}
	return &Store{
		records:  make(map[string]*record),
		tombs:    cache.New(opts.TombstoneTTL, tombstonePurge),
		logger:   opts.Logger,
		maxTurns: opts.MaxTurns,
	}
}

// NewSessionID mints a fresh session identifier: one per document upload,
// never reused, collision probability cryptographically negligible.
func NewSessionID() string {
	return uuid.NewString()
}

// CreateOrReplace atomically installs idx as the live record for id, marking
// any previous record dead. The returned bool reports whether an existing
// record was replaced. The caller must build idx before calling; this method
// only swaps the map entry and never blocks on collaborators.
//
// On error the store is untouched and ownership of idx stays with the caller.
func (s *Store) CreateOrReplace(id string, idx Index) (replaced bool, err error) {
	if idx == nil {
		return false, ErrNilIndex
	}

	s.mu.Lock()
	if _, dead := s.tombs.Get(id); dead {
		s.mu.Unlock()
		return false, ErrSessionInvalidated
	}

	old := s.records[id]
	s.records[id] = &record{
		id:        id,
		index:     idx,
		createdAt: time.Now(),
		live:      true,
	}

	var release Index
	if old != nil {
		replaced = true
		old.live = false
		old.turns = nil
		if old.refs == 0 && !old.released {
			old.released = true
			release = old.index
		}
	}
	s.mu.Unlock()

	// Release outside the lock: handle cleanup may be arbitrarily slow and
	// must not serialize unrelated sessions.
	if release != nil {
		release.Release()
	}

	s.logger.Info("session_store", "session installed", map[string]interface{}{
		"session_id": id,
		"replaced":   replaced,
	})
	return replaced, nil
}

// Lookup returns the current live handle for id. The handle stays valid for
// the duration of the caller's use only under the lease discipline; query
// paths should prefer AcquireForQuery.
func (s *Store) Lookup(id string) (Index, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.records[id]
	if rec == nil || !rec.live {
		return nil, false
	}
	return rec.index, true
}

// Invalidate marks the record dead and retires the identifier for good.
// Idempotent: invalidating an absent or already-dead session reports
// (nil, false) and is not an error.
func (s *Store) Invalidate(id string) (*SessionMeta, bool) {
	s.mu.Lock()
	rec := s.records[id]
	if rec == nil || !rec.live {
		s.mu.Unlock()
		return nil, false
	}

	meta := &SessionMeta{
		SessionID: rec.id,
		CreatedAt: rec.createdAt,
		Turns:     len(rec.turns),
	}
	rec.live = false
	rec.turns = nil
	delete(s.records, id)
	s.tombs.SetDefault(id, time.Now())

	var release Index
	if rec.refs == 0 && !rec.released {
		rec.released = true
		release = rec.index
	}
	s.mu.Unlock()

	if release != nil {
		release.Release()
	}

	s.logger.Info("session_store", "session invalidated", map[string]interface{}{
		"session_id": id,
	})
	return meta, true
}

// Snapshot reports the session's status without exposing the handle.
func (s *Store) Snapshot(id string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec := s.records[id]; rec != nil && rec.live {
		return Snapshot{
			SessionID: id,
			Live:      true,
			CreatedAt: rec.createdAt,
			Turns:     len(rec.turns),
		}, true
	}
	if _, dead := s.tombs.Get(id); dead {
		return Snapshot{SessionID: id, Expired: true}, true
	}
	return Snapshot{}, false
}
