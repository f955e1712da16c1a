package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/metaDAOproject/acctsync/pkg/clock"
	"github.com/metaDAOproject/acctsync/pkg/notify"
)

// Ledger errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownAccount    = errors.New("unknown account")
	ErrInjectedFailure   = errors.New("injected fetch failure")
)

// Config holds ledger configuration.
type Config struct {
	// FetchLatency delays every fetch.
	FetchLatency time.Duration

	// DropPushes starts the ledger with notifications suppressed.
	DropPushes bool

	// Accounts are the initial balances by address.
	Accounts map[string]uint64

	// Clock drives fetch latency. Defaults to real time.
	Clock clock.Clock

	// Logger receives publish failures at debug level.
	Logger *slog.Logger
}

// Ledger is an in-process account store.
type Ledger struct {
	mu sync.Mutex

	accounts   map[string]Account
	slot       uint64
	failNext   int
	dropPushes bool

	// pubMu keeps publishes in slot order.
	pubMu sync.Mutex

	hub     *notify.Hub[string, ChangeEvent]
	clock   clock.Clock
	latency time.Duration
	logger  *slog.Logger

	fetches atomic.Uint64
}

// New creates a ledger publishing through hub.
func New(hub *notify.Hub[string, ChangeEvent], cfg Config) *Ledger {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	l := &Ledger{
		accounts:   make(map[string]Account),
		dropPushes: cfg.DropPushes,
		hub:        hub,
		clock:      clock.OrReal(cfg.Clock),
		latency:    cfg.FetchLatency,
		logger:     logger,
	}
	for addr, balance := range cfg.Accounts {
		l.slot++
		l.accounts[addr] = Account{Address: addr, Balance: balance, Slot: l.slot}
	}
	return l
}

// Hub returns the hub change events are published on.
func (l *Ledger) Hub() *notify.Hub[string, ChangeEvent] {
	return l.hub
}

// Fetch returns the current account at addr. The bool result is false if
// the account does not exist.
func (l *Ledger) Fetch(ctx context.Context, addr string) (Account, bool, error) {
	l.fetches.Add(1)

	if l.latency > 0 {
		done := make(chan struct{})
		t := l.clock.AfterFunc(l.latency, func() { close(done) })
		select {
		case <-done:
		case <-ctx.Done():
			t.Stop()
			return Account{}, false, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failNext > 0 {
		l.failNext--
		return Account{}, false, fmt.Errorf("fetch %s: %w", addr, ErrInjectedFailure)
	}

	a, ok := l.accounts[addr]
	return a, ok, nil
}

// Fetches returns how many fetches were served.
func (l *Ledger) Fetches() uint64 {
	return l.fetches.Load()
}

// Get returns the account at addr without counting as a fetch.
func (l *Ledger) Get(addr string) (Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.accounts[addr]
	return a, ok
}

// Addresses returns every account address, sorted.
func (l *Ledger) Addresses() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	addrs := make([]string, 0, len(l.accounts))
	for addr := range l.accounts {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// Credit adds amount to addr, creating the account if needed, and publishes
// the change.
func (l *Ledger) Credit(addr string, amount uint64) (Account, error) {
	return l.apply(addr, true, func(a *Account, _ bool) error {
		a.Balance += amount
		return nil
	})
}

// Debit subtracts amount from addr and publishes the change.
func (l *Ledger) Debit(addr string, amount uint64) (Account, error) {
	return l.apply(addr, true, func(a *Account, exists bool) error {
		if !exists {
			return fmt.Errorf("%w: %s", ErrUnknownAccount, addr)
		}
		if a.Balance < amount {
			return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientFunds, addr, a.Balance, amount)
		}
		a.Balance -= amount
		return nil
	})
}

// SetBalance overwrites the balance of addr. When publish is false no change
// event is sent, as if the notification was lost.
func (l *Ledger) SetBalance(addr string, balance uint64, publish bool) (Account, error) {
	return l.apply(addr, publish, func(a *Account, _ bool) error {
		a.Balance = balance
		return nil
	})
}

// FailNext makes the next n fetches fail.
func (l *Ledger) FailNext(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = n
}

// DropPushes suppresses (true) or restores (false) change events.
func (l *Ledger) DropPushes(drop bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dropPushes = drop
}

// apply mutates addr under the lock, bumps its slot and publishes the result
// outside the lock.
func (l *Ledger) apply(addr string, publish bool, mutate func(*Account, bool) error) (Account, error) {
	l.pubMu.Lock()
	defer l.pubMu.Unlock()

	l.mu.Lock()
	a, exists := l.accounts[addr]
	if !exists {
		a.Address = addr
	}
	if err := mutate(&a, exists); err != nil {
		l.mu.Unlock()
		return Account{}, err
	}
	l.slot++
	a.Slot = l.slot
	l.accounts[addr] = a
	publish = publish && !l.dropPushes
	l.mu.Unlock()

	if !publish {
		return a, nil
	}

	data, err := EncodeAccount(a)
	if err != nil {
		return a, fmt.Errorf("encode %s: %w", addr, err)
	}
	ev := ChangeEvent{Address: addr, Slot: a.Slot, Data: data}
	if _, err := l.hub.Publish(addr, ev); err != nil {
		l.logger.Debug("ledger: subscriber rejected change",
			slog.String("address", addr),
			slog.Uint64("slot", a.Slot),
			slog.String("error", err.Error()))
	}
	return a, nil
}
