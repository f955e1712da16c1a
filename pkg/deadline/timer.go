package deadline

import (
	"errors"
	"sync"
	"time"

	"github.com/metaDAOproject/acctsync/pkg/clock"
)

// Deadline errors.
var (
	ErrInvalidDuration = errors.New("invalid deadline duration")
)

// Deadline represents an armed deadline.
type Deadline[K comparable] struct {
	// Key identifies this deadline.
	Key K

	// StartTime is when the deadline was armed.
	StartTime time.Time

	// Duration is the time from StartTime until the deadline.
	Duration time.Duration

	// Generation increases with every Set for any key of the manager.
	Generation uint64

	fn    func()
	timer clock.Timer
}

// ExpiresAt returns when the deadline elapses.
func (d *Deadline[K]) ExpiresAt() time.Time {
	return d.StartTime.Add(d.Duration)
}

// Manager holds at most one deadline per key.
type Manager[K comparable] struct {
	mu sync.Mutex

	clock clock.Clock

	// Active deadlines by key
	deadlines map[K]*Deadline[K]

	generation uint64
}

// NewManager creates a deadline manager. A nil clock uses real time.
func NewManager[K comparable](clk clock.Clock) *Manager[K] {
	return &Manager[K]{
		clock:     clock.OrReal(clk),
		deadlines: make(map[K]*Deadline[K]),
	}
}

// Set arms a deadline for key, replacing any existing one, and returns its
// generation. fn runs on the clock's timer goroutine when the deadline
// elapses, without the manager lock held.
func (m *Manager[K]) Set(key K, d time.Duration, fn func()) (uint64, error) {
	if d <= 0 {
		return 0, ErrInvalidDuration
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.deadlines[key]; exists {
		existing.timer.Stop()
	}

	m.generation++
	dl := &Deadline[K]{
		Key:        key,
		StartTime:  m.clock.Now(),
		Duration:   d,
		Generation: m.generation,
		fn:         fn,
	}
	dl.timer = m.clock.AfterFunc(d, func() {
		m.expire(dl)
	})

	m.deadlines[key] = dl
	return dl.Generation, nil
}

// Cancel disarms the deadline for key. It reports whether one was armed.
func (m *Manager[K]) Cancel(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	dl, exists := m.deadlines[key]
	if !exists {
		return false
	}
	dl.timer.Stop()
	delete(m.deadlines, key)
	return true
}

// CancelAll disarms every deadline and returns how many were armed.
func (m *Manager[K]) CancelAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.deadlines)
	for key, dl := range m.deadlines {
		dl.timer.Stop()
		delete(m.deadlines, key)
	}
	return n
}

// Get returns a copy of the deadline for key, or nil.
func (m *Manager[K]) Get(key K) *Deadline[K] {
	m.mu.Lock()
	defer m.mu.Unlock()

	dl, exists := m.deadlines[key]
	if !exists {
		return nil
	}
	return &Deadline[K]{
		Key:        dl.Key,
		StartTime:  dl.StartTime,
		Duration:   dl.Duration,
		Generation: dl.Generation,
	}
}

// Active reports whether a deadline is armed for key.
func (m *Manager[K]) Active(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.deadlines[key]
	return exists
}

// Remaining returns the time left until the deadline for key, or 0.
func (m *Manager[K]) Remaining(key K) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	dl, exists := m.deadlines[key]
	if !exists {
		return 0
	}
	remaining := dl.ExpiresAt().Sub(m.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Count returns the number of armed deadlines.
func (m *Manager[K]) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.deadlines)
}

// expire runs when dl's timer fires.
func (m *Manager[K]) expire(dl *Deadline[K]) {
	m.mu.Lock()

	// Replaced or cancelled after the timer fired.
	if current, exists := m.deadlines[dl.Key]; !exists || current != dl {
		m.mu.Unlock()
		return
	}
	delete(m.deadlines, dl.Key)
	fn := dl.fn

	m.mu.Unlock()

	if fn != nil {
		fn()
	}
}
