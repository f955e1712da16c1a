// Package interactive provides the interactive command-line interface
// for acctsync-console.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/metaDAOproject/acctsync/internal/ledger"
	"github.com/metaDAOproject/acctsync/pkg/accountsync"
	"github.com/metaDAOproject/acctsync/pkg/keyed"
)

// Synchronizer is the synchronizer type the console drives.
type Synchronizer = accountsync.Synchronizer[string, ledger.ChangeEvent, ledger.Account]

// Store is the account cache shared with the synchronizer.
type Store = keyed.Store[string, ledger.Account]

var errUsage = errors.New("usage")

// Console handles interactive mode for acctsync-console.
type Console struct {
	sync   *Synchronizer
	store  *Store
	ledger *ledger.Ledger
	rl     *readline.Instance
	out    io.Writer

	// Cancels the change printer of the watched key.
	mu      sync.Mutex
	unwatch func()
}

// New creates a new interactive console.
func New(s *Synchronizer, store *Store, l *ledger.Ledger) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "acctsync> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	c := newConsole(s, store, l, rl.Stdout())
	c.rl = rl
	return c, nil
}

func newConsole(s *Synchronizer, store *Store, l *ledger.Ledger, out io.Writer) *Console {
	return &Console{
		sync:   s,
		store:  store,
		ledger: l,
		out:    &lockedWriter{w: out},
	}
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("watch"),
		readline.PcItem("unwatch"),
		readline.PcItem("show"),
		readline.PcItem("update"),
		readline.PcItem("local"),
		readline.PcItem("credit"),
		readline.PcItem("debit"),
		readline.PcItem("silent"),
		readline.PcItem("fail"),
		readline.PcItem("drop", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem("invalidate"),
		readline.PcItem("refresh"),
		readline.PcItem("keys"),
		readline.PcItem("accounts"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
func (c *Console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()
	defer c.stopPrinting()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if !c.Exec(line) {
			cancel()
			return
		}
	}
}

// Exec runs one command line. It returns false when the console should exit.
func (c *Console) Exec(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		c.printHelp()
	case "watch", "w":
		err = c.cmdWatch(args)
	case "unwatch", "u":
		c.cmdUnwatch()
	case "show", "s":
		c.cmdShow()
	case "update":
		err = c.cmdUpdate(args, true)
	case "local":
		err = c.cmdUpdate(args, false)
	case "credit":
		err = c.cmdCredit(args)
	case "debit":
		err = c.cmdDebit(args)
	case "silent":
		err = c.cmdSilent(args)
	case "fail":
		err = c.cmdFail(args)
	case "drop":
		err = c.cmdDrop(args)
	case "invalidate", "inv":
		err = c.cmdInvalidate(args)
	case "refresh":
		err = c.sync.Refresh()
	case "keys", "k":
		c.cmdKeys()
	case "accounts", "a":
		c.cmdAccounts()
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return false
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
		return true
	}

	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Account Sync Console Commands:
  Synchronizer:
    watch <addr>          - Make addr the active account
    unwatch               - Deactivate the active account
    show                  - Show the active account and fallback timer
    update <balance>      - Write locally and submit to the ledger
    local <balance>       - Write locally only (the fallback reverts it)
    refresh               - Pull the active account now
    invalidate [addr]     - Request a re-pull (default: active account)
    keys                  - List cached accounts

  Ledger:
    accounts              - List ledger accounts
    credit <addr> <n>     - Add n to addr and notify
    debit <addr> <n>      - Subtract n from addr and notify
    silent <addr> <bal>   - Set balance without a notification
    fail <n>              - Fail the next n fetches
    drop on|off           - Drop or deliver change notifications

  Other:
    help                  - Show this help
    exit                  - Exit the console`)
}

func (c *Console) cmdWatch(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: watch <addr>", errUsage)
	}
	addr := args[0]

	if err := c.sync.Activate(addr); err != nil {
		return err
	}
	c.startPrinting(addr)
	fmt.Fprintf(c.out, "Watching %s (epoch %d)\n", addr, c.sync.Epoch())
	return nil
}

func (c *Console) cmdUnwatch() {
	key, active := c.sync.Key()
	if !active {
		fmt.Fprintln(c.out, "No active account")
		return
	}
	c.stopPrinting()
	c.sync.Deactivate()
	fmt.Fprintf(c.out, "Stopped watching %s\n", key)
}

func (c *Console) cmdShow() {
	snap := c.sync.Read()
	if !snap.Active {
		fmt.Fprintln(c.out, "No active account")
		return
	}

	fmt.Fprintf(c.out, "Account:  %s\n", snap.Key)
	fmt.Fprintf(c.out, "Status:   %s\n", snap.Status)
	if snap.HasValue {
		fmt.Fprintf(c.out, "Balance:  %d (slot %d)\n", snap.Value.Balance, snap.Value.Slot)
	} else {
		fmt.Fprintln(c.out, "Balance:  -")
	}
	if snap.Err != nil {
		fmt.Fprintf(c.out, "Error:    %v\n", snap.Err)
	}
	if snap.Invalidated {
		fmt.Fprintln(c.out, "Invalidated: yes")
	}
	if !snap.UpdatedAt.IsZero() {
		fmt.Fprintf(c.out, "Updated:  %s\n", snap.UpdatedAt.Format(time.TimeOnly))
	}
	fmt.Fprintf(c.out, "Epoch:    %d\n", c.sync.Epoch())
	if c.sync.FallbackArmed() {
		fmt.Fprintf(c.out, "Fallback: armed, %s remaining\n", c.sync.FallbackRemaining().Round(time.Millisecond))
	} else {
		fmt.Fprintln(c.out, "Fallback: idle")
	}
}

// cmdUpdate writes the balance optimistically. When submit is true the
// balance is also sent to the ledger, whose notification confirms the write.
func (c *Console) cmdUpdate(args []string, submit bool) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: update|local <balance>", errUsage)
	}
	balance, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid balance: %s", args[0])
	}

	snap := c.sync.Read()
	if !snap.Active {
		return accountsync.ErrNotActive
	}

	next := ledger.Account{Address: snap.Key, Balance: balance, Slot: snap.Value.Slot}
	if err := c.sync.Update(next); err != nil {
		return err
	}
	if !submit {
		return nil
	}

	_, err = c.ledger.SetBalance(snap.Key, balance, true)
	return err
}

func (c *Console) cmdCredit(args []string) error {
	addr, amount, err := parseAmount("credit", args)
	if err != nil {
		return err
	}
	a, err := c.ledger.Credit(addr, amount)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Ledger: %s balance=%d slot=%d\n", a.Address, a.Balance, a.Slot)
	return nil
}

func (c *Console) cmdDebit(args []string) error {
	addr, amount, err := parseAmount("debit", args)
	if err != nil {
		return err
	}
	a, err := c.ledger.Debit(addr, amount)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Ledger: %s balance=%d slot=%d\n", a.Address, a.Balance, a.Slot)
	return nil
}

func (c *Console) cmdSilent(args []string) error {
	addr, balance, err := parseAmount("silent", args)
	if err != nil {
		return err
	}
	a, err := c.ledger.SetBalance(addr, balance, false)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Ledger: %s balance=%d slot=%d (no notification)\n", a.Address, a.Balance, a.Slot)
	return nil
}

func (c *Console) cmdFail(args []string) error {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return fmt.Errorf("invalid count: %s", args[0])
		}
		n = v
	}
	c.ledger.FailNext(n)
	fmt.Fprintf(c.out, "Next %d fetch(es) will fail\n", n)
	return nil
}

func (c *Console) cmdDrop(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: drop on|off", errUsage)
	}
	switch strings.ToLower(args[0]) {
	case "on":
		c.ledger.DropPushes(true)
		fmt.Fprintln(c.out, "Change notifications dropped")
	case "off":
		c.ledger.DropPushes(false)
		fmt.Fprintln(c.out, "Change notifications delivered")
	default:
		return fmt.Errorf("%w: drop on|off", errUsage)
	}
	return nil
}

func (c *Console) cmdInvalidate(args []string) error {
	var addr string
	if len(args) > 0 {
		addr = args[0]
	} else {
		key, active := c.sync.Key()
		if !active {
			return accountsync.ErrNotActive
		}
		addr = key
	}
	c.store.Invalidate(addr)
	fmt.Fprintf(c.out, "Invalidated %s\n", addr)
	return nil
}

func (c *Console) cmdKeys() {
	keys := c.store.Keys()
	if len(keys) == 0 {
		fmt.Fprintln(c.out, "No cached accounts")
		return
	}

	entries := c.store.Entries()
	active, _ := c.sync.Key()
	for _, key := range keys {
		e := entries[key]
		marker := " "
		if key == active {
			marker = "*"
		}
		fmt.Fprintf(c.out, "%s %-16s %-8s %s\n", marker, key, e.Status, formatValue(e))
	}
}

func (c *Console) cmdAccounts() {
	addrs := c.ledger.Addresses()
	if len(addrs) == 0 {
		fmt.Fprintln(c.out, "Ledger is empty")
		return
	}
	for _, addr := range addrs {
		a, _ := c.ledger.Get(addr)
		fmt.Fprintf(c.out, "  %-16s balance=%d slot=%d\n", addr, a.Balance, a.Slot)
	}
}

// startPrinting prints every change of addr until stopPrinting.
func (c *Console) startPrinting(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unwatch != nil {
		c.unwatch()
	}
	c.unwatch = c.store.Watch(addr, func(ch keyed.Change[string, ledger.Account]) {
		fmt.Fprintf(c.out, "[%s] %s %s %s\n", ch.Key, ch.Kind, ch.Entry.Status, formatValue(ch.Entry))
	})
}

func (c *Console) stopPrinting() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unwatch != nil {
		c.unwatch()
		c.unwatch = nil
	}
}

func formatValue(e keyed.Entry[ledger.Account]) string {
	if !e.HasValue {
		return "balance=-"
	}
	return fmt.Sprintf("balance=%d slot=%d", e.Value.Balance, e.Value.Slot)
}

func parseAmount(cmd string, args []string) (string, uint64, error) {
	if len(args) != 2 {
		return "", 0, fmt.Errorf("%w: %s <addr> <n>", errUsage, cmd)
	}
	n, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid amount: %s", args[1])
	}
	return args[0], n, nil
}

// lockedWriter serializes writes from change printers and commands.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
