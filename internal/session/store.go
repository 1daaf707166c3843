package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"

	"github.com/KaramelBytes/datalens/internal/metrics"
)

// DefaultTTL is the idle time after which a session expires.
const DefaultTTL = 60 * time.Minute

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Store keeps sessions in memory and expires them after a period of
// inactivity. Every Get extends the session's lifetime. Expiry runs on the
// wall clock inside ttlcache; the injected clock only stamps Created and
// LastUsed.
type Store struct {
	cache *ttlcache.Cache[string, *Session]
	clock clockwork.Clock
}

// NewStore returns a store whose sessions expire after ttl of inactivity.
// A zero ttl uses DefaultTTL; a nil clock uses the wall clock.
func NewStore(ttl time.Duration, clock clockwork.Clock) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *Session](ttl),
	)
	cache.OnInsertion(func(context.Context, *ttlcache.Item[string, *Session]) {
		metrics.SessionsActive.Inc()
	})
	cache.OnEviction(func(context.Context, ttlcache.EvictionReason, *ttlcache.Item[string, *Session]) {
		metrics.SessionsActive.Dec()
	})
	return &Store{cache: cache, clock: clock}
}

// Start runs the expiry loop in the background until Stop is called.
func (s *Store) Start() { go s.cache.Start() }

// Stop ends the expiry loop.
func (s *Store) Stop() { s.cache.Stop() }

// Create opens a new empty session.
func (s *Store) Create() *Session {
	now := s.clock.Now()
	sess := &Session{ID: uuid.NewString(), Created: now, LastUsed: now}
	s.cache.Set(sess.ID, sess, ttlcache.DefaultTTL)
	return sess
}

// Get returns a live session and marks it used.
func (s *Store) Get(id string) (*Session, error) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, ErrNotFound
	}
	sess := item.Value()
	sess.Lock()
	sess.LastUsed = s.clock.Now()
	sess.Unlock()
	return sess, nil
}

// Delete ends a session. It reports whether the session existed.
func (s *Store) Delete(id string) bool {
	if !s.cache.Has(id) {
		return false
	}
	s.cache.Delete(id)
	return true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.cache.DeleteExpired()
	return s.cache.Len()
}
