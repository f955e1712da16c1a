package accountsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/metaDAOproject/acctsync/pkg/clock"
	"github.com/metaDAOproject/acctsync/pkg/deadline"
	"github.com/metaDAOproject/acctsync/pkg/keyed"
	"github.com/metaDAOproject/acctsync/pkg/synclog"
)

// Pull reasons recorded in the trace.
const (
	ReasonActivate   = "activate"
	ReasonFallback   = "fallback"
	ReasonRefresh    = "refresh"
	ReasonInvalidate = "invalidate"
)

// Snapshot is what a consumer reads: the active key and its cached entry.
type Snapshot[K comparable, V any] struct {
	Key    K
	Active bool

	Value    V
	HasValue bool
	Status   keyed.Status
	Err      error

	Invalidated bool
	UpdatedAt   time.Time
}

// view is the lock-free part of the state, published on every key change.
type view[K comparable] struct {
	key    K
	active bool
}

// pull identifies one issued fetch.
type pull[K comparable] struct {
	key    K
	epoch  uint64
	seq    uint64
	reason string
}

// Synchronizer keeps the entry of one active key fresh in a shared store.
type Synchronizer[K comparable, E any, V any] struct {
	id        string
	store     *keyed.Store[K, V]
	notifier  Notifier[K, E]
	fetch     FetchFunc[K, V]
	transform TransformFunc[E, V]

	timeout   time.Duration
	clock     clock.Clock
	logger    *slog.Logger
	tracer    synclog.Logger
	parent    context.Context
	deadlines *deadline.Manager[K]

	mu sync.Mutex

	active bool
	key    K
	epoch  uint64
	closed bool

	// Teardown handles for the active key
	handle      string
	unwatch     func()
	pullCtx     context.Context
	cancelPulls context.CancelFunc

	// pullSeq numbers issued pulls; appliedSeq is the newest completed one.
	pullSeq    uint64
	appliedSeq uint64

	// armSeq numbers fallback arms; armed is the live one (0 = none).
	armSeq uint64
	armed  uint64

	wg   sync.WaitGroup
	view atomic.Pointer[view[K]]
}

// New creates a synchronizer over store. If cfg.InitialKey is set, the key is
// activated before New returns.
func New[K comparable, E any, V any](
	store *keyed.Store[K, V],
	notifier Notifier[K, E],
	fetch FetchFunc[K, V],
	transform TransformFunc[E, V],
	cfg Config[K],
) (*Synchronizer[K, E, V], error) {
	if store == nil || notifier == nil || fetch == nil || transform == nil {
		return nil, fmt.Errorf("%w: store, notifier, fetch and transform are required", ErrInvalidConfig)
	}
	if cfg.FallbackTimeout < 0 {
		return nil, fmt.Errorf("%w: negative fallback timeout %v", ErrInvalidConfig, cfg.FallbackTimeout)
	}
	if cfg.FallbackTimeout == 0 {
		cfg.FallbackTimeout = DefaultFallbackTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = synclog.NoopLogger{}
	}
	parent := cfg.Context
	if parent == nil {
		parent = context.Background()
	}
	clk := clock.OrReal(cfg.Clock)

	s := &Synchronizer[K, E, V]{
		id:        uuid.NewString(),
		store:     store,
		notifier:  notifier,
		fetch:     fetch,
		transform: transform,
		timeout:   cfg.FallbackTimeout,
		clock:     clk,
		tracer:    tracer,
		parent:    parent,
		deadlines: deadline.NewManager[K](clk),
	}
	s.logger = logger.With(slog.String("sync_id", s.id))
	s.view.Store(&view[K]{})

	if cfg.InitialKey != nil {
		if err := s.Activate(*cfg.InitialKey); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ID returns the synchronizer's trace identifier.
func (s *Synchronizer[K, E, V]) ID() string {
	return s.id
}

// Activate makes key the active key. Activating the already active key is a
// no-op; activating another key tears the current one down first.
//
// Activation subscribes to change events, marks the entry pending (keeping
// any previous value) and issues a pull.
func (s *Synchronizer[K, E, V]) Activate(key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.active && s.key == key {
		return nil
	}
	if s.active {
		s.teardownLocked()
	}

	s.epoch++
	epoch := s.epoch

	handle, err := s.notifier.Subscribe(key, func(event E) error {
		return s.onPush(epoch, event)
	})
	if err != nil {
		s.logger.Warn("subscribe failed", slog.Any("key", key), slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	ctx, cancel := context.WithCancel(s.parent)
	s.active = true
	s.key = key
	s.handle = handle
	s.pullCtx = ctx
	s.cancelPulls = cancel
	s.unwatch = s.store.Watch(key, func(c keyed.Change[K, V]) {
		if c.Kind == keyed.ChangeInvalidated {
			// Watchers may run while s.mu is held by this goroutine.
			go s.onInvalidated(epoch)
		}
	})
	s.view.Store(&view[K]{key: key, active: true})

	s.emitLocked(synclog.Event{Kind: synclog.KindActivated})
	s.logger.Debug("activated", slog.Any("key", key), slog.Uint64("epoch", epoch))

	s.store.MarkPending(key)
	s.startPullLocked(ReasonActivate)
	return nil
}

// Deactivate tears down the active key: the fallback timer is cancelled, the
// change subscription removed and in-flight pulls become stale. The key's
// entry stays in the store. Deactivating without an active key is a no-op.
func (s *Synchronizer[K, E, V]) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		s.teardownLocked()
	}
}

// Update writes value for the active key immediately and (re)arms the
// fallback timer.
func (s *Synchronizer[K, E, V]) Update(value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if !s.active {
		return ErrNotActive
	}

	s.store.Set(s.key, value)
	s.emitLocked(synclog.Event{Kind: synclog.KindLocalWrite})

	return s.armFallbackLocked()
}

// Refresh issues a pull for the active key now. The result overwrites the
// cached value unless a newer pull has completed first.
func (s *Synchronizer[K, E, V]) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if !s.active {
		return ErrNotActive
	}

	s.startPullLocked(ReasonRefresh)
	return nil
}

// Read returns the active key and its cached entry. It does not take the
// synchronizer lock and is safe to call from store watchers.
func (s *Synchronizer[K, E, V]) Read() Snapshot[K, V] {
	v := s.view.Load()
	snap := Snapshot[K, V]{Key: v.key, Active: v.active}
	if !v.active {
		return snap
	}

	entry, ok := s.store.Get(v.key)
	if !ok {
		return snap
	}
	snap.Value = entry.Value
	snap.HasValue = entry.HasValue
	snap.Status = entry.Status
	snap.Err = entry.Err
	snap.Invalidated = entry.Invalidated
	snap.UpdatedAt = entry.UpdatedAt
	return snap
}

// Key returns the active key, if any.
func (s *Synchronizer[K, E, V]) Key() (K, bool) {
	v := s.view.Load()
	return v.key, v.active
}

// Epoch returns the current activation epoch.
func (s *Synchronizer[K, E, V]) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// FallbackArmed reports whether a fallback timer is armed.
func (s *Synchronizer[K, E, V]) FallbackArmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed != 0
}

// FallbackRemaining returns the time until the armed fallback fires, or 0.
func (s *Synchronizer[K, E, V]) FallbackRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.armed == 0 {
		return 0
	}
	return s.deadlines.Remaining(s.key)
}

// Close deactivates the synchronizer and waits for in-flight fetches to
// return. Further calls to Activate, Update and Refresh fail with ErrClosed.
func (s *Synchronizer[K, E, V]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.active {
		s.teardownLocked()
	}
	s.closed = true
	s.deadlines.CancelAll()
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// teardownLocked releases everything held for the active key.
func (s *Synchronizer[K, E, V]) teardownLocked() {
	s.disarmLocked()

	if err := s.notifier.Unsubscribe(s.handle); err != nil {
		s.logger.Warn("unsubscribe failed",
			slog.Any("key", s.key),
			slog.String("handle", s.handle),
			slog.String("error", err.Error()))
	}
	s.handle = ""

	if s.unwatch != nil {
		s.unwatch()
		s.unwatch = nil
	}
	if s.cancelPulls != nil {
		s.cancelPulls()
		s.cancelPulls = nil
		s.pullCtx = nil
	}

	s.emitLocked(synclog.Event{Kind: synclog.KindDeactivated})
	s.logger.Debug("deactivated", slog.Any("key", s.key), slog.Uint64("epoch", s.epoch))

	s.active = false
	var zero K
	s.key = zero
	s.view.Store(&view[K]{})
}

// onPush handles a change event delivered for epoch.
func (s *Synchronizer[K, E, V]) onPush(epoch uint64, event E) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || epoch != s.epoch {
		s.emitLocked(synclog.Event{Kind: synclog.KindStaleDropped, Epoch: epoch, Reason: "push"})
		return nil
	}

	// Panics propagate to the notifier.
	value, err := s.transform(event)
	if err != nil {
		s.emitLocked(synclog.Event{Kind: synclog.KindHandlerFailed, Error: err.Error()})
		return fmt.Errorf("%w: %w", ErrHandlerFailed, err)
	}

	if s.armed != 0 {
		s.disarmLocked()
		s.emitLocked(synclog.Event{Kind: synclog.KindFallbackCancelled})
	}

	s.store.Set(s.key, value)
	s.emitLocked(synclog.Event{Kind: synclog.KindPushApplied})
	return nil
}

// armFallbackLocked replaces the fallback timer with one firing after the
// configured timeout.
func (s *Synchronizer[K, E, V]) armFallbackLocked() error {
	s.armSeq++
	seq, epoch := s.armSeq, s.epoch

	if _, err := s.deadlines.Set(s.key, s.timeout, func() {
		s.onFallback(epoch, seq)
	}); err != nil {
		return err
	}
	s.armed = seq

	timeout := s.timeout
	s.emitLocked(synclog.Event{Kind: synclog.KindFallbackArmed, Timeout: &timeout})
	return nil
}

// disarmLocked cancels the fallback timer, if any.
func (s *Synchronizer[K, E, V]) disarmLocked() {
	if s.armed == 0 {
		return
	}
	s.armed = 0
	s.deadlines.Cancel(s.key)
}

// onFallback runs when the fallback timer armed as seq under epoch fires.
func (s *Synchronizer[K, E, V]) onFallback(epoch, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Cancelled or re-armed while the callback was on its way.
	if !s.active || epoch != s.epoch || seq != s.armed {
		s.emitLocked(synclog.Event{Kind: synclog.KindStaleDropped, Epoch: epoch, Reason: ReasonFallback})
		return
	}

	s.armed = 0
	s.emitLocked(synclog.Event{Kind: synclog.KindFallbackFired})
	s.startPullLocked(ReasonFallback)
}

// onInvalidated runs after the store signalled a re-pull for the key
// activated as epoch.
func (s *Synchronizer[K, E, V]) onInvalidated(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || epoch != s.epoch {
		return
	}

	s.emitLocked(synclog.Event{Kind: synclog.KindInvalidated})
	s.startPullLocked(ReasonInvalidate)
}

// startPullLocked issues a fetch for the active key.
func (s *Synchronizer[K, E, V]) startPullLocked(reason string) {
	s.pullSeq++
	p := pull[K]{
		key:    s.key,
		epoch:  s.epoch,
		seq:    s.pullSeq,
		reason: reason,
	}
	ctx := s.pullCtx

	s.emitLocked(synclog.Event{Kind: synclog.KindPullStarted, Seq: p.seq, Reason: reason})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		value, ok, err := s.fetch(ctx, p.key)
		s.completePull(p, value, ok, err)
	}()
}

// completePull applies a fetch result unless it has gone stale.
func (s *Synchronizer[K, E, V]) completePull(p pull[K], value V, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stale string
	switch {
	case !s.active || p.epoch != s.epoch:
		stale = "epoch ended"
	case p.seq <= s.appliedSeq:
		stale = "newer pull completed"
	}
	if stale != "" {
		s.emitLocked(synclog.Event{
			Kind:   synclog.KindStaleDropped,
			Key:    fmt.Sprint(p.key),
			Epoch:  p.epoch,
			Seq:    p.seq,
			Reason: stale,
		})
		return
	}
	s.appliedSeq = p.seq

	if err != nil {
		pullErr := &PullError{Key: fmt.Sprint(p.key), Epoch: p.epoch, Seq: p.seq, Err: err}
		s.store.MarkFailed(p.key, pullErr)
		s.emitLocked(synclog.Event{Kind: synclog.KindPullFailed, Seq: p.seq, Reason: p.reason, Error: err.Error()})
		s.logger.Warn("pull failed",
			slog.Any("key", p.key),
			slog.String("reason", p.reason),
			slog.String("error", err.Error()))
		return
	}

	if ok {
		s.store.Set(p.key, value)
	} else {
		s.store.SetAbsent(p.key)
	}
	s.emitLocked(synclog.Event{Kind: synclog.KindPullApplied, Seq: p.seq, Reason: p.reason})
}

// emitLocked fills in the common fields and sends event to the tracer.
func (s *Synchronizer[K, E, V]) emitLocked(event synclog.Event) {
	event.Timestamp = s.clock.Now()
	event.SyncID = s.id
	if event.Key == "" && s.active {
		event.Key = fmt.Sprint(s.key)
	}
	if event.Epoch == 0 {
		event.Epoch = s.epoch
	}
	s.tracer.Log(event)
}
