package accountsync

import (
	"context"
	"log/slog"
	"time"

	"github.com/metaDAOproject/acctsync/pkg/clock"
	"github.com/metaDAOproject/acctsync/pkg/synclog"
)

// DefaultFallbackTimeout is how long a local write waits for a confirming
// push before a pull is forced.
const DefaultFallbackTimeout = 45 * time.Second

// Notifier delivers change events for a key.
//
// Subscribe must not deliver events synchronously, and Unsubscribe must not
// wait for in-flight deliveries: both are called with the synchronizer's
// lock held.
type Notifier[K comparable, E any] interface {
	Subscribe(key K, onEvent func(E) error) (handle string, err error)
	Unsubscribe(handle string) error
}

// FetchFunc pulls the current remote value of key. The bool result is false
// when the remote record does not exist. It must be safe to call repeatedly
// and should honour ctx.
type FetchFunc[K comparable, V any] func(ctx context.Context, key K) (V, bool, error)

// TransformFunc derives a value from a change event.
type TransformFunc[E, V any] func(event E) (V, error)

// Config holds synchronizer configuration.
type Config[K comparable] struct {
	// FallbackTimeout is the delay between a local write and the reconciling
	// pull. Zero means DefaultFallbackTimeout.
	FallbackTimeout time.Duration

	// Clock drives the fallback timer. Defaults to real time.
	Clock clock.Clock

	// Logger receives operational logs. Defaults to a discard logger.
	Logger *slog.Logger

	// Tracer receives synchronization trace events. Defaults to no tracing.
	Tracer synclog.Logger

	// Context is the parent of every fetch context. Defaults to
	// context.Background().
	Context context.Context

	// InitialKey, if set, is activated by New.
	InitialKey *K
}

// DefaultConfig returns the default synchronizer configuration.
func DefaultConfig[K comparable]() Config[K] {
	return Config[K]{
		FallbackTimeout: DefaultFallbackTimeout,
	}
}
