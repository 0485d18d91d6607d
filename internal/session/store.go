package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long an untouched session is kept.
const DefaultTTL = 2 * time.Hour

// Entry is one stored session. Lock it for the duration of a user action so
// actions on the same session run one at a time.
type Entry[T any] struct {
	ID    string
	Value T

	mu       sync.Mutex
	lastSeen time.Time
}

func (e *Entry[T]) Lock()   { e.mu.Lock() }
func (e *Entry[T]) Unlock() { e.mu.Unlock() }

// TryLock locks the entry unless another action holds it.
func (e *Entry[T]) TryLock() bool { return e.mu.TryLock() }

// Store keeps sessions in memory, keyed by a random id.
type Store[T any] struct {
	mu      sync.Mutex
	entries map[string]*Entry[T]
	newFn   func(id string) T
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewStore creates a store that builds new values with newFn. A non-positive
// ttl uses DefaultTTL.
func NewStore[T any](newFn func(id string) T, ttl time.Duration, logger *slog.Logger) *Store[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store[T]{
		entries: make(map[string]*Entry[T]),
		newFn:   newFn,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

// Create starts a new session.
func (s *Store[T]) Create() *Entry[T] {
	id := uuid.NewString()
	e := &Entry[T]{ID: id, Value: s.newFn(id), lastSeen: s.now()}

	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()

	s.logger.Info("session created", "session", id)
	return e
}

// Get returns the session and marks it as recently used.
func (s *Store[T]) Get(id string) (*Entry[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if ok {
		e.lastSeen = s.now()
	}
	return e, ok
}

// GetOrCreate returns the session for id, or a new one when id is unknown
// or expired. created reports which happened.
func (s *Store[T]) GetOrCreate(id string) (e *Entry[T], created bool) {
	if id != "" {
		if e, ok := s.Get(id); ok {
			return e, false
		}
	}
	return s.Create(), true
}

// Delete forgets the session. Unknown ids are ignored.
func (s *Store[T]) Delete(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()

	s.logger.Debug("session ended", "session", id)
}

func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes sessions idle for longer than the ttl and returns how many
// were removed. A session with an action in flight is kept.
func (s *Store[T]) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, e := range s.entries {
		if !e.lastSeen.Before(cutoff) {
			continue
		}
		if !e.mu.TryLock() {
			continue
		}
		delete(s.entries, id)
		e.mu.Unlock()
		removed++
		s.logger.Debug("session expired", "session", id)
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Store[T]) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				s.logger.Info("expired sessions removed", "count", n)
			}
		}
	}
}
