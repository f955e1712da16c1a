package keyed

import "time"

// Status describes the freshness of a cached entry.
type Status uint8

const (
	// StatusIdle is reported for keys without an entry.
	StatusIdle Status = iota

	// StatusPending indicates a pull is outstanding.
	StatusPending

	// StatusReady indicates the entry holds the best known remote value.
	StatusReady

	// StatusError indicates the last pull failed.
	StatusError
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "IDLE"
	case StatusPending:
		return "PENDING"
	case StatusReady:
		return "READY"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Entry is the cached state of one key.
type Entry[V any] struct {
	// Value is the last known value. Only meaningful when HasValue is true.
	Value V

	// HasValue is false until a value has been observed, and after a pull
	// reported that the remote record does not exist.
	HasValue bool

	// Status is the entry's freshness.
	Status Status

	// Err is the last pull failure while Status is StatusError.
	Err error

	// Invalidated is set by Invalidate and Seed and cleared by the next write.
	Invalidated bool

	// UpdatedAt is when Value was last replaced.
	UpdatedAt time.Time
}

// ChangeKind identifies what happened to an entry.
type ChangeKind uint8

const (
	// ChangeSet indicates a new value (or absence) was written.
	ChangeSet ChangeKind = iota

	// ChangePending indicates a pull was issued.
	ChangePending

	// ChangeFailed indicates a pull failed.
	ChangeFailed

	// ChangeInvalidated indicates a re-pull was requested.
	ChangeInvalidated

	// ChangeEvicted indicates the entry was removed from the store.
	ChangeEvicted
)

// String returns a human-readable change kind name.
func (k ChangeKind) String() string {
	switch k {
	case ChangeSet:
		return "SET"
	case ChangePending:
		return "PENDING"
	case ChangeFailed:
		return "FAILED"
	case ChangeInvalidated:
		return "INVALIDATED"
	case ChangeEvicted:
		return "EVICTED"
	default:
		return "UNKNOWN"
	}
}

// Change is delivered to watchers of a key.
type Change[K comparable, V any] struct {
	Key   K
	Kind  ChangeKind
	Entry Entry[V]
}
