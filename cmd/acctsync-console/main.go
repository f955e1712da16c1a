// Command acctsync-console is an interactive console driving an account
// synchronizer against a simulated ledger.
//
// It shows how the cache reacts to change notifications, lost
// notifications, failed fetches and the fallback timer.
//
// Usage:
//
//	acctsync-console [flags]
//
// Flags:
//
//	-config string     Configuration file path
//	-log-level string  Log level: debug, info, warn, error (default from config)
//	-trace string      Write the synchronization trace to this file
//	-snapshot string   Load the cache from and save it to this file
//	-fallback duration Fallback timeout (default from config)
//
// Examples:
//
//	# Start with two accounts and a 5s fallback
//	acctsync-console -config configs/console.yaml -fallback 5s
//
//	# Record a trace for acctsync-log
//	acctsync-console -trace sync.trace -log-level debug
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/metaDAOproject/acctsync/cmd/acctsync-console/interactive"
	"github.com/metaDAOproject/acctsync/internal/config"
	"github.com/metaDAOproject/acctsync/internal/ledger"
	"github.com/metaDAOproject/acctsync/pkg/accountsync"
	"github.com/metaDAOproject/acctsync/pkg/keyed"
	"github.com/metaDAOproject/acctsync/pkg/notify"
	"github.com/metaDAOproject/acctsync/pkg/snapshot"
	"github.com/metaDAOproject/acctsync/pkg/synclog"
)

// Options holds the command-line flags.
type Options struct {
	ConfigFile   string
	LogLevel     string
	TraceFile    string
	SnapshotFile string
	Fallback     time.Duration
}

var opts Options

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&opts.TraceFile, "trace", "", "Write the synchronization trace to this file")
	flag.StringVar(&opts.SnapshotFile, "snapshot", "", "Load the cache from and save it to this file")
	flag.DurationVar(&opts.Fallback, "fallback", 0, "Fallback timeout")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(o Options) (*config.Config, error) {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return nil, err
	}

	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.TraceFile != "" {
		cfg.TraceFile = o.TraceFile
	}
	if o.SnapshotFile != "" {
		cfg.SnapshotFile = o.SnapshotFile
	}
	if o.Fallback != 0 {
		cfg.FallbackTimeout = config.Duration(o.Fallback)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config) error {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	// Log output is redirected through readline once the console exists.
	stderr := newRedirectWriter(os.Stderr)
	logger, closeLog, err := newLogger(level, stderr, cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	tracer, closeTrace, err := newTracer(logger, cfg.TraceFile)
	if err != nil {
		return err
	}
	defer closeTrace()

	store, err := keyed.New[string, ledger.Account](keyed.Config{Capacity: cfg.StoreCapacity})
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}

	var snapshots *snapshot.FileStore[string, ledger.Account]
	if cfg.SnapshotFile != "" {
		snapshots = snapshot.NewFileStore[string, ledger.Account](cfg.SnapshotFile)
		restoreSnapshot(logger, snapshots, store)
	}

	hubCfg := notify.DefaultConfig()
	hubCfg.Logger = logger
	hub := notify.NewHubWithConfig[string, ledger.ChangeEvent](hubCfg)

	l := ledger.New(hub, ledger.Config{
		FetchLatency: cfg.Simulation.FetchLatency.Std(),
		DropPushes:   cfg.Simulation.DropPushes,
		Accounts:     cfg.Simulation.Accounts,
		Logger:       logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	syncer, err := accountsync.New(store, hub, l.Fetch, ledger.DecodeEvent, accountsync.Config[string]{
		FallbackTimeout: cfg.FallbackTimeout.Std(),
		Logger:          logger,
		Tracer:          tracer,
		Context:         ctx,
	})
	if err != nil {
		return fmt.Errorf("create synchronizer: %w", err)
	}

	logger.Info("account sync console started",
		slog.String("sync_id", syncer.ID()),
		slog.Duration("fallback_timeout", cfg.FallbackTimeout.Std()),
		slog.Int("accounts", len(l.Addresses())))

	ic, err := interactive.New(syncer, store, l)
	if err != nil {
		return err
	}
	// Redirect log output through readline to avoid interfering with input
	stderr.Redirect(ic.Stderr())
	go ic.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	cancel()
	if err := syncer.Close(); err != nil {
		logger.Warn("close synchronizer", slog.String("error", err.Error()))
	}

	if snapshots != nil {
		saveSnapshot(logger, snapshots, store)
	}
	return nil
}

func restoreSnapshot(logger *slog.Logger, fs *snapshot.FileStore[string, ledger.Account], store *interactive.Store) {
	state, err := fs.Load()
	if err != nil {
		logger.Warn("failed to load snapshot",
			slog.String("path", fs.Path()),
			slog.String("error", err.Error()))
		return
	}
	if n := snapshot.Restore(store, state); n > 0 {
		logger.Info("restored snapshot",
			slog.String("path", fs.Path()),
			slog.Int("accounts", n),
			slog.Time("saved_at", state.SavedAt))
	}
}

func saveSnapshot(logger *slog.Logger, fs *snapshot.FileStore[string, ledger.Account], store *interactive.Store) {
	state := snapshot.Capture(store)
	if err := fs.Save(state); err != nil {
		logger.Warn("failed to save snapshot",
			slog.String("path", fs.Path()),
			slog.String("error", err.Error()))
		return
	}
	logger.Info("saved snapshot",
		slog.String("path", fs.Path()),
		slog.Int("accounts", len(state.Records)))
}

// newTracer builds the synchronization tracer: debug-level slog records plus
// the optional trace file.
func newTracer(logger *slog.Logger, path string) (synclog.Logger, func(), error) {
	adapter := synclog.NewSlogAdapter(logger)
	if path == "" {
		return adapter, func() {}, nil
	}

	fl, err := synclog.NewFileLogger(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace file: %w", err)
	}
	return synclog.NewMultiLogger(adapter, fl), func() { _ = fl.Close() }, nil
}
