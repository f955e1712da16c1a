package acctsync_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/metaDAOproject/acctsync/internal/ledger"
	"github.com/metaDAOproject/acctsync/pkg/accountsync"
	"github.com/metaDAOproject/acctsync/pkg/clock"
	"github.com/metaDAOproject/acctsync/pkg/keyed"
	"github.com/metaDAOproject/acctsync/pkg/notify"
	"github.com/metaDAOproject/acctsync/pkg/snapshot"
	"github.com/metaDAOproject/acctsync/pkg/synclog"
)

type accountSync = accountsync.Synchronizer[string, ledger.ChangeEvent, ledger.Account]
type accountStore = keyed.Store[string, ledger.Account]

type system struct {
	clock  *clock.Manual
	hub    *notify.Hub[string, ledger.ChangeEvent]
	ledger *ledger.Ledger
	store  *accountStore
}

func newSystem(t *testing.T, accounts map[string]uint64) *system {
	t.Helper()

	clk := clock.NewManual(time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC))
	hub := notify.NewHub[string, ledger.ChangeEvent]()
	store, err := keyed.New[string, ledger.Account](keyed.Config{Clock: clk})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	return &system{
		clock:  clk,
		hub:    hub,
		ledger: ledger.New(hub, ledger.Config{Accounts: accounts}),
		store:  store,
	}
}

func (s *system) newSync(t *testing.T, tracer synclog.Logger) *accountSync {
	t.Helper()

	syncer, err := accountsync.New(s.store, s.hub, s.ledger.Fetch, ledger.DecodeEvent, accountsync.Config[string]{
		Clock:  s.clock,
		Tracer: tracer,
	})
	if err != nil {
		t.Fatalf("Failed to create synchronizer: %v", err)
	}
	t.Cleanup(func() { _ = syncer.Close() })
	return syncer
}

func waitBalance(t *testing.T, store *accountStore, addr string, balance uint64) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		e, ok := store.Get(addr)
		if ok && e.Status == keyed.StatusReady && e.HasValue && e.Value.Balance == balance {
			return
		}
		time.Sleep(time.Millisecond)
	}
	e, _ := store.Get(addr)
	t.Fatalf("%s: balance %d (status %s), want %d", addr, e.Value.Balance, e.Status, balance)
}

// TestE2E_PushPath tests that ledger changes reach the cache through the hub.
func TestE2E_PushPath(t *testing.T) {
	sys := newSystem(t, map[string]uint64{"acct-1": 100})
	syncer := sys.newSync(t, nil)

	if err := syncer.Activate("acct-1"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	waitBalance(t, sys.store, "acct-1", 100)

	if _, err := sys.ledger.Credit("acct-1", 50); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	waitBalance(t, sys.store, "acct-1", 150)

	snap := syncer.Read()
	if !snap.Active || snap.Key != "acct-1" {
		t.Errorf("Read() = %+v, want active acct-1", snap)
	}
	if sys.ledger.Fetches() != 1 {
		t.Errorf("Fetches() = %d, want 1 (pushes need no pull)", sys.ledger.Fetches())
	}
}

// TestE2E_LostNotificationRecoveredByFallback tests that a local write whose
// confirming notification is lost is reconciled by the fallback pull.
func TestE2E_LostNotificationRecoveredByFallback(t *testing.T) {
	sys := newSystem(t, map[string]uint64{"acct-1": 100})
	recorder := synclog.NewRecorder(0)
	syncer := sys.newSync(t, recorder)

	if err := syncer.Activate("acct-1"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	waitBalance(t, sys.store, "acct-1", 100)

	// The transaction lands with a different balance than expected and its
	// notification is lost.
	sys.ledger.DropPushes(true)
	if err := syncer.Update(ledger.Account{Address: "acct-1", Balance: 80}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if _, err := sys.ledger.Debit("acct-1", 30); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	waitBalance(t, sys.store, "acct-1", 80)
	if !syncer.FallbackArmed() {
		t.Fatal("fallback not armed after local write")
	}

	sys.clock.Advance(accountsync.DefaultFallbackTimeout - time.Second)
	e, _ := sys.store.Get("acct-1")
	if e.Value.Balance != 80 {
		t.Errorf("balance %d before the fallback fired, want 80", e.Value.Balance)
	}

	sys.clock.Advance(time.Second)
	waitBalance(t, sys.store, "acct-1", 70)

	// Epoch waits for the synchronizer lock, so the pull has been traced.
	_ = syncer.Epoch()
	kinds := recorder.Kinds()
	var fired, applied bool
	for _, k := range kinds {
		switch k {
		case synclog.KindFallbackFired:
			fired = true
		case synclog.KindPullApplied:
			applied = fired
		}
	}
	if !fired || !applied {
		t.Errorf("trace %v lacks FALLBACK_FIRED followed by PULL_APPLIED", kinds)
	}
}

// TestE2E_SharedStore tests two synchronizers on different keys sharing one
// store.
func TestE2E_SharedStore(t *testing.T) {
	sys := newSystem(t, map[string]uint64{"acct-1": 1, "acct-2": 2})
	a := sys.newSync(t, nil)
	b := sys.newSync(t, nil)

	if err := a.Activate("acct-1"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if err := b.Activate("acct-2"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	waitBalance(t, sys.store, "acct-1", 1)
	waitBalance(t, sys.store, "acct-2", 2)

	if _, err := sys.ledger.Credit("acct-2", 10); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	waitBalance(t, sys.store, "acct-2", 12)

	if got := a.Read().Value.Balance; got != 1 {
		t.Errorf("acct-1 balance = %d, want 1", got)
	}
	if sys.hub.Count() != 2 {
		t.Errorf("hub has %d subscriptions, want 2", sys.hub.Count())
	}

	a.Deactivate()
	if sys.hub.CountFor("acct-1") != 0 {
		t.Error("deactivation left a subscription behind")
	}
}

// TestE2E_SnapshotWarmStart tests that a restored cache serves the saved
// value until the activation pull refreshes it.
func TestE2E_SnapshotWarmStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.snapshot")
	files := snapshot.NewFileStore[string, ledger.Account](path)

	first := newSystem(t, map[string]uint64{"acct-1": 100})
	syncer := first.newSync(t, nil)
	if err := syncer.Activate("acct-1"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	waitBalance(t, first.store, "acct-1", 100)
	if err := syncer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := files.Save(snapshot.Capture(first.store)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// A new process starts while the ledger has moved on.
	second := newSystem(t, map[string]uint64{"acct-1": 250})
	state, err := files.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if n := snapshot.Restore(second.store, state); n != 1 {
		t.Fatalf("Restore() = %d, want 1", n)
	}

	e, _ := second.store.Get("acct-1")
	if !e.HasValue || e.Value.Balance != 100 || !e.Invalidated {
		t.Fatalf("restored entry = %+v, want invalidated balance 100", e)
	}

	next := second.newSync(t, nil)
	if err := next.Activate("acct-1"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	waitBalance(t, second.store, "acct-1", 250)

	e, _ = second.store.Get("acct-1")
	if e.Invalidated {
		t.Error("pull did not clear the invalidated flag")
	}
}

// TestE2E_TraceFile tests that a synchronizer's trace can be read back.
func TestE2E_TraceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.trace")
	fl, err := synclog.NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	sys := newSystem(t, map[string]uint64{"acct-1": 100})
	syncer := sys.newSync(t, fl)
	if err := syncer.Activate("acct-1"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	waitBalance(t, sys.store, "acct-1", 100)
	if err := syncer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("Close trace failed: %v", err)
	}

	kind := synclog.KindPullApplied
	reader, err := synclog.NewFilteredReader(path, synclog.Filter{SyncID: syncer.ID(), Kind: &kind})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	event, err := reader.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if event.Key != "acct-1" || event.Epoch != 1 || event.Seq != 1 {
		t.Errorf("PULL_APPLIED event = %+v, want acct-1 epoch 1 seq 1", event)
	}
}
