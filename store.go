package memsession

import (
	"crypto/rand"
	"io"
	"net/http"
	"sync"
	"time"
)

// DefaultLifetime is how long a session lives after it was last touched.
const DefaultLifetime = 36 * time.Hour

// Store is the in-memory table of live sessions.
//
// A single mutex guards the table, the set of reserved ids and snapshot
// capture/restore. All operations are non-blocking.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	// reserved holds ids handed out by ResolveID that have not been
	// promoted by Create yet.
	reserved map[string]struct{}

	lifetime time.Duration
	codec    cookieCodec
	now      func() time.Time
	rand     io.Reader
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLifetime sets the session lifetime.
func WithLifetime(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.lifetime = d
		}
	}
}

// WithCookieName sets the name of the cookie carrying the session id.
func WithCookieName(name string) StoreOption {
	return func(s *Store) {
		if name != "" {
			s.codec.name = name
		}
	}
}

// WithSameSite sets the SameSite attribute of issued cookies.
func WithSameSite(mode http.SameSite) StoreOption {
	return func(s *Store) {
		if mode != 0 {
			s.codec.sameSite = mode
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRandom replaces crypto/rand.Reader as the id entropy source.
func WithRandom(r io.Reader) StoreOption {
	return func(s *Store) {
		if r != nil {
			s.rand = r
		}
	}
}

// NewStore returns an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		reserved: make(map[string]struct{}),
		lifetime: DefaultLifetime,
		codec: cookieCodec{
			name:     DefaultCookieName,
			sameSite: http.SameSiteLaxMode,
		},
		now:  time.Now,
		rand: rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.codec.now = s.now
	return s
}

// Lifetime returns the configured session lifetime.
func (s *Store) Lifetime() time.Duration {
	return s.lifetime
}

// ResolveID returns the session id carried by the request headers, or a
// freshly generated one. Fresh ids are reserved until Create promotes them or
// release drops them, so no two requests are handed the same id.
//
// No session is created; Get on a fresh id finds nothing.
func (s *Store) ResolveID(h http.Header) (id string, fresh bool, err error) {
	if id, ok := s.codec.extractID(h); ok {
		return id, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		id, err = generateID(s.rand)
		if err != nil {
			return "", false, err
		}
		if _, live := s.sessions[id]; live {
			continue
		}
		if _, taken := s.reserved[id]; taken {
			continue
		}
		s.reserved[id] = struct{}{}
		return id, true, nil
	}
}

// release drops the reservation of an id that was never promoted.
func (s *Store) release(id string) {
	s.mu.Lock()
	delete(s.reserved, id)
	s.mu.Unlock()
}

// Get returns the live session for id. Every expired session is evicted
// before the lookup, so an expired session is never returned.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(s.now())
	sess, ok := s.sessions[id]
	return sess, ok
}

// Create inserts a new empty session for id, replacing any previous one.
func (s *Store) Create(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := newSession(id, s.now().Add(s.lifetime))
	s.sessions[id] = sess
	delete(s.reserved, id)
	return sess
}

// GetOrCreate returns the live session for id, creating it when absent.
// The lookup and the insert happen under one lock.
func (s *Store) GetOrCreate(id string) (sess *Session, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)
	if sess, ok := s.sessions[id]; ok {
		return sess, false
	}
	sess = newSession(id, now.Add(s.lifetime))
	s.sessions[id] = sess
	delete(s.reserved, id)
	return sess, true
}

// move creates the session newID carrying the data of the live session
// oldID, if any, and removes oldID. It happens under one lock so no request
// can look up oldID between the copy and the removal.
func (s *Store) move(oldID, newID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)
	sess := newSession(newID, now.Add(s.lifetime))
	if old, ok := s.sessions[oldID]; ok {
		sess.values = old.Values()
		delete(s.sessions, oldID)
	}
	s.sessions[newID] = sess
	delete(s.reserved, newID)
	return sess
}

// Delete removes the session for id, if any.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Touch extends the live session for id to now+lifetime and returns the new
// expiry. When no live session exists the same value is computed but nothing
// is stored; it is what the cookie of a not-yet-created session announces.
func (s *Store) Touch(id string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	expires := now.Add(s.lifetime)
	if sess, ok := s.sessions[id]; ok && !sess.expired(now) {
		sess.setExpiresAt(expires)
	}
	return expires
}

// Sweep evicts every expired session and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *Store) sweepLocked(now time.Time) int {
	n := 0
	for id, sess := range s.sessions {
		if sess.expired(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of tracked sessions, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
