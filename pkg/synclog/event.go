package synclog

import (
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Traces are only ever written by FileLogger. The decoder rejects input
// the encoder never produces.
var (
	traceEnc = mustEncMode(cbor.EncOptions{
		Sort:        cbor.SortCoreDeterministic,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	})
	traceDec = mustDecMode(cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		IndefLength:     cbor.IndefLengthForbidden,
		MaxNestedLevels: 4,
		MaxMapPairs:     16,
	})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("synclog: trace encoder mode: %v", err))
	}
	return em
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	dm, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("synclog: trace decoder mode: %v", err))
	}
	return dm
}

// Event is one step in a synchronizer's life.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SyncID uniquely identifies the synchronizer instance (UUID).
	SyncID string `cbor:"2,keyasint"`

	// Key is the string form of the subscription key.
	Key string `cbor:"3,keyasint,omitempty"`

	// Epoch is the activation the event belongs to.
	Epoch uint64 `cbor:"4,keyasint,omitempty"`

	// Kind is what happened.
	Kind Kind `cbor:"5,keyasint"`

	// Seq is the pull sequence number for pull events.
	Seq uint64 `cbor:"6,keyasint,omitempty"`

	// Reason says why a pull was issued or an event dropped.
	Reason string `cbor:"7,keyasint,omitempty"`

	// Error is the failure text for failure events.
	Error string `cbor:"8,keyasint,omitempty"`

	// Timeout is the armed fallback duration (FALLBACK_ARMED only).
	Timeout *time.Duration `cbor:"9,keyasint,omitempty"`
}

// Category returns the event's category.
func (e Event) Category() Category {
	return e.Kind.Category()
}

// EncodeEvent encodes an Event to CBOR bytes.
func EncodeEvent(event Event) ([]byte, error) {
	return traceEnc.Marshal(event)
}

// DecodeEvent decodes one CBOR-encoded Event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := traceDec.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder returns a trace encoder writing to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return traceEnc.NewEncoder(w)
}

// NewDecoder returns a trace decoder reading from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return traceDec.NewDecoder(r)
}

// Kind identifies a synchronization step.
type Kind uint8

const (
	// KindActivated indicates a key became active.
	KindActivated Kind = 0
	// KindDeactivated indicates the active key was torn down.
	KindDeactivated Kind = 1
	// KindPullStarted indicates a fetch was issued.
	KindPullStarted Kind = 2
	// KindPullApplied indicates a fetch result was written.
	KindPullApplied Kind = 3
	// KindPullFailed indicates a fetch failed and the entry was marked.
	KindPullFailed Kind = 4
	// KindPushApplied indicates a change event was written.
	KindPushApplied Kind = 5
	// KindHandlerFailed indicates a change event could not be transformed.
	KindHandlerFailed Kind = 6
	// KindLocalWrite indicates an optimistic local write.
	KindLocalWrite Kind = 7
	// KindFallbackArmed indicates the fallback timer was (re)armed.
	KindFallbackArmed Kind = 8
	// KindFallbackCancelled indicates a push cancelled the fallback timer.
	KindFallbackCancelled Kind = 9
	// KindFallbackFired indicates the fallback timer elapsed.
	KindFallbackFired Kind = 10
	// KindStaleDropped indicates a result from an old epoch or pull was ignored.
	KindStaleDropped Kind = 11
	// KindInvalidated indicates a re-pull was requested through the store.
	KindInvalidated Kind = 12
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindActivated:
		return "ACTIVATED"
	case KindDeactivated:
		return "DEACTIVATED"
	case KindPullStarted:
		return "PULL_STARTED"
	case KindPullApplied:
		return "PULL_APPLIED"
	case KindPullFailed:
		return "PULL_FAILED"
	case KindPushApplied:
		return "PUSH_APPLIED"
	case KindHandlerFailed:
		return "HANDLER_FAILED"
	case KindLocalWrite:
		return "LOCAL_WRITE"
	case KindFallbackArmed:
		return "FALLBACK_ARMED"
	case KindFallbackCancelled:
		return "FALLBACK_CANCELLED"
	case KindFallbackFired:
		return "FALLBACK_FIRED"
	case KindStaleDropped:
		return "STALE_DROPPED"
	case KindInvalidated:
		return "INVALIDATED"
	default:
		return "UNKNOWN"
	}
}

// ParseKind returns the Kind named s (as printed by String).
func ParseKind(s string) (Kind, bool) {
	for k := KindActivated; k <= KindInvalidated; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Category returns the category the kind belongs to.
func (k Kind) Category() Category {
	switch k {
	case KindActivated, KindDeactivated, KindInvalidated:
		return CategoryLifecycle
	case KindPullStarted, KindPullApplied:
		return CategoryPull
	case KindPushApplied:
		return CategoryPush
	case KindLocalWrite:
		return CategoryWrite
	case KindFallbackArmed, KindFallbackCancelled, KindFallbackFired:
		return CategoryFallback
	case KindPullFailed, KindHandlerFailed, KindStaleDropped:
		return CategoryAnomaly
	default:
		return CategoryAnomaly
	}
}

// Category groups event kinds.
type Category uint8

const (
	// CategoryLifecycle covers activation, teardown and invalidation.
	CategoryLifecycle Category = 0
	// CategoryPull covers fetches.
	CategoryPull Category = 1
	// CategoryPush covers change events.
	CategoryPush Category = 2
	// CategoryWrite covers local writes.
	CategoryWrite Category = 3
	// CategoryFallback covers the fallback timer.
	CategoryFallback Category = 4
	// CategoryAnomaly covers failures and dropped results.
	CategoryAnomaly Category = 5
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryLifecycle:
		return "LIFECYCLE"
	case CategoryPull:
		return "PULL"
	case CategoryPush:
		return "PUSH"
	case CategoryWrite:
		return "WRITE"
	case CategoryFallback:
		return "FALLBACK"
	case CategoryAnomaly:
		return "ANOMALY"
	default:
		return "UNKNOWN"
	}
}
