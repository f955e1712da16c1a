package keyed

import (
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/metaDAOproject/acctsync/pkg/clock"
)

// ErrInvalidCapacity is returned for a non-positive store capacity.
var ErrInvalidCapacity = errors.New("invalid store capacity")

// DefaultCapacity is the default maximum number of entries.
const DefaultCapacity = 4096

// Config holds store configuration.
type Config struct {
	// Capacity is the maximum number of entries kept.
	Capacity int

	// Clock stamps UpdatedAt. Defaults to the real clock.
	Clock clock.Clock
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		Capacity: DefaultCapacity,
	}
}

// Store is a concurrency-safe keyed cache shared by synchronizers and readers.
type Store[K comparable, V any] struct {
	mu sync.Mutex

	clock   clock.Clock
	entries *simplelru.LRU[K, Entry[V]]

	// Watchers by key, in registration order.
	watchers  map[K][]*watcher[K, V]
	watcherID uint64

	// evicted collects entries removed by the LRU while mu is held.
	evicted []Change[K, V]
}

type watcher[K comparable, V any] struct {
	id uint64
	fn func(Change[K, V])
}

// New creates a store with the given configuration.
func New[K comparable, V any](cfg Config) (*Store[K, V], error) {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Capacity < 0 {
		return nil, ErrInvalidCapacity
	}

	s := &Store[K, V]{
		clock:    clock.OrReal(cfg.Clock),
		watchers: make(map[K][]*watcher[K, V]),
	}

	lru, err := simplelru.NewLRU[K, Entry[V]](cfg.Capacity, s.onEvict)
	if err != nil {
		return nil, err
	}
	s.entries = lru
	return s, nil
}

// NewDefault creates a store with the default configuration.
func NewDefault[K comparable, V any]() *Store[K, V] {
	s, err := New[K, V](DefaultConfig())
	if err != nil {
		// DefaultConfig is always valid.
		panic(err)
	}
	return s
}

// onEvict runs inside LRU calls made with mu held.
func (s *Store[K, V]) onEvict(key K, entry Entry[V]) {
	s.evicted = append(s.evicted, Change[K, V]{Key: key, Kind: ChangeEvicted, Entry: entry})
}

// Get returns the entry for key. It has no side effects.
func (s *Store[K, V]) Get(key K) (Entry[V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Peek(key)
}

// Set replaces the value for key and marks it ready.
func (s *Store[K, V]) Set(key K, value V) {
	s.update(key, ChangeSet, func(e *Entry[V]) {
		e.Value = value
		e.HasValue = true
		e.Status = StatusReady
		e.Err = nil
		e.Invalidated = false
		e.UpdatedAt = s.clock.Now()
	})
}

// SetAbsent records that the remote record does not exist.
func (s *Store[K, V]) SetAbsent(key K) {
	s.update(key, ChangeSet, func(e *Entry[V]) {
		var zero V
		e.Value = zero
		e.HasValue = false
		e.Status = StatusReady
		e.Err = nil
		e.Invalidated = false
		e.UpdatedAt = s.clock.Now()
	})
}

// MarkPending sets the status to pending, creating the entry if needed.
// The value is preserved.
func (s *Store[K, V]) MarkPending(key K) {
	s.update(key, ChangePending, func(e *Entry[V]) {
		e.Status = StatusPending
	})
}

// MarkFailed records a failed pull. The value is preserved.
func (s *Store[K, V]) MarkFailed(key K, err error) {
	s.update(key, ChangeFailed, func(e *Entry[V]) {
		e.Status = StatusError
		e.Err = err
	})
}

// Invalidate requests a re-pull of key without discarding its value.
// Watchers are notified even if no entry exists yet.
func (s *Store[K, V]) Invalidate(key K) {
	s.mu.Lock()
	entry, ok := s.entries.Peek(key)
	if ok {
		entry.Invalidated = true
		s.entries.Add(key, entry)
	}
	notify := s.collectLocked(Change[K, V]{Key: key, Kind: ChangeInvalidated, Entry: entry})
	s.mu.Unlock()

	notify()
}

// Seed stores a value restored from persistence. The entry is ready but
// invalidated, so the next activation of key refreshes it.
func (s *Store[K, V]) Seed(key K, value V, updatedAt time.Time) {
	s.update(key, ChangeSet, func(e *Entry[V]) {
		e.Value = value
		e.HasValue = true
		e.Status = StatusReady
		e.Err = nil
		e.Invalidated = true
		e.UpdatedAt = updatedAt
	})
}

// Delete evicts key.
func (s *Store[K, V]) Delete(key K) {
	s.mu.Lock()
	s.entries.Remove(key)
	notify := s.collectLocked()
	s.mu.Unlock()

	notify()
}

// Clear evicts every entry.
func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	s.entries.Purge()
	notify := s.collectLocked()
	s.mu.Unlock()

	notify()
}

// Len returns the number of entries.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

// Keys returns the stored keys from least to most recently written.
func (s *Store[K, V]) Keys() []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Keys()
}

// Entries returns a copy of every entry.
func (s *Store[K, V]) Entries() map[K]Entry[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[K]Entry[V], s.entries.Len())
	for _, key := range s.entries.Keys() {
		if entry, ok := s.entries.Peek(key); ok {
			result[key] = entry
		}
	}
	return result
}

// Watch registers fn for changes to key and returns a function that removes
// it. Watchers run synchronously on the writer's goroutine, after the store
// lock is released, in registration order.
func (s *Store[K, V]) Watch(key K, fn func(Change[K, V])) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.watcherID++
	w := &watcher[K, V]{id: s.watcherID, fn: fn}
	s.watchers[key] = append(s.watchers[key], w)

	var once sync.Once
	return func() {
		once.Do(func() { s.unwatch(key, w.id) })
	}
}

// WatcherCount returns the number of watchers registered for key.
func (s *Store[K, V]) WatcherCount(key K) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers[key])
}

func (s *Store[K, V]) unwatch(key K, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws := s.watchers[key]
	for i, w := range ws {
		if w.id == id {
			s.watchers[key] = append(ws[:i:i], ws[i+1:]...)
			break
		}
	}
	if len(s.watchers[key]) == 0 {
		delete(s.watchers, key)
	}
}

// update applies mutate to the entry for key and notifies watchers.
func (s *Store[K, V]) update(key K, kind ChangeKind, mutate func(*Entry[V])) {
	s.mu.Lock()
	entry, _ := s.entries.Peek(key)
	mutate(&entry)
	s.entries.Add(key, entry)
	notify := s.collectLocked(Change[K, V]{Key: key, Kind: kind, Entry: entry})
	s.mu.Unlock()

	notify()
}

// collectLocked pairs pending changes (including LRU evictions) with their
// watchers and returns a function delivering them outside the lock.
func (s *Store[K, V]) collectLocked(changes ...Change[K, V]) func() {
	changes = append(s.evicted, changes...)
	s.evicted = nil

	type delivery struct {
		change   Change[K, V]
		watchers []*watcher[K, V]
	}
	var deliveries []delivery
	for _, c := range changes {
		ws := s.watchers[c.Key]
		if len(ws) == 0 {
			continue
		}
		snapshot := make([]*watcher[K, V], len(ws))
		copy(snapshot, ws)
		deliveries = append(deliveries, delivery{change: c, watchers: snapshot})
	}

	return func() {
		for _, d := range deliveries {
			for _, w := range d.watchers {
				w.fn(d.change)
			}
		}
	}
}
