package notify

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Subscription errors.
var (
	ErrResourceExhausted    = errors.New("maximum subscriptions reached")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNilCallback          = errors.New("nil subscription callback")
)

// Default subscription limits.
const (
	DefaultMaxSubscriptions = 1024
	DefaultMaxPerKey        = 64
)

// Config holds hub configuration.
type Config struct {
	// MaxSubscriptions is the maximum number of subscriptions allowed.
	MaxSubscriptions int

	// MaxPerKey is the maximum number of subscriptions for one key.
	MaxPerKey int

	// Logger receives delivery failures at debug level.
	Logger *slog.Logger
}

// DefaultConfig returns the default hub configuration.
func DefaultConfig() Config {
	return Config{
		MaxSubscriptions: DefaultMaxSubscriptions,
		MaxPerKey:        DefaultMaxPerKey,
	}
}

// subscriber is one registered callback.
type subscriber[K comparable, E any] struct {
	handle string
	key    K
	fn     func(E) error
}

// Hub routes change events for a key to its subscribers.
type Hub[K comparable, E any] struct {
	mu sync.RWMutex

	config Config
	logger *slog.Logger

	// Active subscriptions by handle
	subscriptions map[string]*subscriber[K, E]

	// Index by key for dispatch, in subscription order
	byKey map[K][]*subscriber[K, E]

	// publishMu serializes deliveries.
	publishMu sync.Mutex
}

// NewHub creates a hub with default configuration.
func NewHub[K comparable, E any]() *Hub[K, E] {
	return NewHubWithConfig[K, E](DefaultConfig())
}

// NewHubWithConfig creates a hub with custom configuration.
func NewHubWithConfig[K comparable, E any](config Config) *Hub[K, E] {
	if config.MaxSubscriptions <= 0 {
		config.MaxSubscriptions = DefaultMaxSubscriptions
	}
	if config.MaxPerKey <= 0 {
		config.MaxPerKey = DefaultMaxPerKey
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Hub[K, E]{
		config:        config,
		logger:        logger,
		subscriptions: make(map[string]*subscriber[K, E]),
		byKey:         make(map[K][]*subscriber[K, E]),
	}
}

// Subscribe registers fn for events on key and returns the subscription
// handle.
func (h *Hub[K, E]) Subscribe(key K, fn func(E) error) (string, error) {
	if fn == nil {
		return "", ErrNilCallback
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.subscriptions) >= h.config.MaxSubscriptions {
		return "", ErrResourceExhausted
	}
	if len(h.byKey[key]) >= h.config.MaxPerKey {
		return "", fmt.Errorf("%w: key %v", ErrResourceExhausted, key)
	}

	sub := &subscriber[K, E]{
		handle: uuid.NewString(),
		key:    key,
		fn:     fn,
	}
	h.subscriptions[sub.handle] = sub
	h.byKey[key] = append(h.byKey[key], sub)

	return sub.handle, nil
}

// Unsubscribe removes a subscription. Deliveries already in progress may
// still complete.
func (h *Hub[K, E]) Unsubscribe(handle string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, exists := h.subscriptions[handle]
	if !exists {
		return ErrSubscriptionNotFound
	}
	delete(h.subscriptions, handle)

	subs := h.byKey[sub.key]
	for i, s := range subs {
		if s.handle == handle {
			h.byKey[sub.key] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(h.byKey[sub.key]) == 0 {
		delete(h.byKey, sub.key)
	}

	return nil
}

// Publish delivers event to every current subscriber of key. It returns the
// number of subscribers that accepted the event and the joined errors of
// those that did not.
func (h *Hub[K, E]) Publish(key K, event E) (int, error) {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	h.mu.RLock()
	subs := make([]*subscriber[K, E], len(h.byKey[key]))
	copy(subs, h.byKey[key])
	h.mu.RUnlock()

	delivered := 0
	var errs []error
	for _, sub := range subs {
		// Skip subscribers removed by an earlier callback of this publish.
		if !h.isSubscribed(sub.handle) {
			continue
		}
		if err := sub.fn(event); err != nil {
			h.logger.Debug("notify: delivery failed",
				slog.String("handle", sub.handle),
				slog.Any("key", key),
				slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		delivered++
	}

	return delivered, errors.Join(errs...)
}

// Count returns the number of active subscriptions.
func (h *Hub[K, E]) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions)
}

// CountFor returns the number of active subscriptions for key.
func (h *Hub[K, E]) CountFor(key K) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byKey[key])
}

// ClearAll removes all subscriptions (e.g., when the upstream connection is
// lost and subscribers must re-subscribe).
func (h *Hub[K, E]) ClearAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subscriptions = make(map[string]*subscriber[K, E])
	h.byKey = make(map[K][]*subscriber[K, E])
}

func (h *Hub[K, E]) isSubscribed(handle string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subscriptions[handle]
	return ok
}
