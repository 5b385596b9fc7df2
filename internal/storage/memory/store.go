package memory

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Entry is a stored value with an optional absolute expiry.
type Entry struct {
	Value string

	// ExpiresAt is the expiry instant in Unix milliseconds.
	// Zero means the entry never expires.
	ExpiresAt int64
}

// Store is a concurrent-safe key-value map with lazy expiration.
//
// One instance is created at startup and shared by reference across all
// connection handlers. Every mapping operation runs under the exclusive
// lock for its whole duration; the lock is never held across I/O.
type Store struct {
	mu    sync.Mutex
	items map[string]Entry

	now func() time.Time

	// metricExpired counts lazily evicted entries. Optional.
	metricExpired prometheus.Counter
}

// Option configures the Store.
type Option func(*Store)

// WithClock replaces the wall clock, used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithExpiredCounter sets a counter incremented on each lazy eviction.
func WithExpiredCounter(c prometheus.Counter) Option {
	return func(s *Store) {
		s.metricExpired = c
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		items: make(map[string]Entry),
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Get returns the value for key, or ok=false if the key is absent or
// expired. An entry whose expiry instant lies strictly in the past is
// removed under the same lock acquisition that discovered it, then
// reported as a miss.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		return "", false
	}

	if e.ExpiresAt > 0 && s.now().UnixMilli() > e.ExpiresAt {
		delete(s.items, key)
		if s.metricExpired != nil {
			s.metricExpired.Inc()
		}
		return "", false
	}

	return e.Value, true
}

// Set stores value under key without expiry, unconditionally overwriting
// any prior entry. Any expiry a previous Set attached is cleared.
func (s *Store) Set(key, value string) {
	s.store(key, Entry{Value: value})
}

// SetWithTTL stores value under key with expiry now+ttl at millisecond
// resolution, unconditionally overwriting any prior entry. A zero ttl
// produces an entry that is already due, so it expires on first access.
func (s *Store) SetWithTTL(key, value string, ttl time.Duration) {
	s.store(key, Entry{Value: value, ExpiresAt: s.now().Add(ttl).UnixMilli()})
}

func (s *Store) store(key string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = e
}

// Len returns the number of entries in the map, including expired
// entries that have not yet been reclaimed by a Get.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
