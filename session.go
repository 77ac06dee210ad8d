package memsession

import (
	"maps"
	"sync"
	"time"
)

// Session is the server-side state of one client.
//
// Sessions are owned by a Store. Handlers receive a pointer for the duration
// of a request and access data through the locked accessors.
type Session struct {
	id string

	mu        sync.RWMutex
	values    map[string]any
	expiresAt time.Time
}

func newSession(id string, expiresAt time.Time) *Session {
	return &Session{
		id:        id,
		values:    make(map[string]any),
		expiresAt: expiresAt,
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// ExpiresAt returns the instant after which the session is dead.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

func (s *Session) setExpiresAt(t time.Time) {
	s.mu.Lock()
	s.expiresAt = t
	s.mu.Unlock()
}

// expired reports whether the session is dead at now.
func (s *Session) expired(now time.Time) bool {
	return s.ExpiresAt().Before(now)
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// GetString returns the value stored under key if it is a string.
func (s *Session) GetString(key string) (string, bool) {
	v, ok := s.Get(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// GetInt returns the value stored under key if it is an integer.
func (s *Session) GetInt(key string) (int, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Set stores value under key.
func (s *Session) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Delete removes key from the session data.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Clear removes all session data.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.values)
}

// Values returns a shallow copy of the session data.
func (s *Session) Values() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}
