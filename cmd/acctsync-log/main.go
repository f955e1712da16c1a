// Command acctsync-log views and analyzes account synchronization traces.
//
// Trace files are written by acctsync-console with the -trace flag (or the
// trace_file configuration key).
//
// Usage:
//
//	acctsync-log <command> [flags] <file.trace>
//
// Commands:
//
//	view     View trace in human-readable format
//	filter   Write matching events to a new trace file
//	export   Export trace to JSONL or CSV
//	stats    Show statistics about the trace
//
// Examples:
//
//	# View everything that happened to one account
//	acctsync-log view -key acct-1 sync.trace
//
//	# View only dropped stale results and failures
//	acctsync-log view -category anomaly sync.trace
//
//	# Keep only one synchronizer's events
//	acctsync-log filter -sync 0123abcd -o one.trace sync.trace
//
//	# Show per-account statistics
//	acctsync-log stats sync.trace
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/metaDAOproject/acctsync/cmd/acctsync-log/commands"
)

const usage = `acctsync-log - Account Sync Trace Analyzer

Usage:
  acctsync-log <command> [flags] <file.trace>

Commands:
  view     View trace in human-readable format
  filter   Write matching events to a new trace file
  export   Export trace to JSONL or CSV
  stats    Show statistics about the trace

Use "acctsync-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "filter":
		runFilter(args)
	case "export":
		runExport(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `acctsync-log view - View trace in human-readable format

Usage:
  acctsync-log view [flags] <file.trace>

Flags:
`)
		fs.PrintDefaults()
	}

	key := fs.String("key", "", "Filter by account key")
	syncID := fs.String("sync", "", "Filter by synchronizer ID")
	kind := fs.String("kind", "", "Filter by event kind (e.g. pull_applied)")
	category := fs.String("category", "", "Filter by category (lifecycle, pull, push, write, fallback, anomaly)")
	since := fs.Duration("since", 0, "Only show events newer than this (relative to now)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: trace file path required")
		fs.Usage()
		os.Exit(1)
	}

	opts := commands.FilterOptions{
		Key:      *key,
		SyncID:   *syncID,
		Kind:     *kind,
		Category: *category,
	}
	filter, err := opts.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *since > 0 {
		t := time.Now().Add(-*since)
		filter.TimeStart = &t
	}

	if err := commands.RunView(fs.Arg(0), filter, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `acctsync-log filter - Write matching events to a new trace file

Usage:
  acctsync-log filter -o <output> [flags] <file.trace>

Flags:
`)
		fs.PrintDefaults()
	}

	var opts commands.FilterOptions
	output := fs.String("o", "", "Output trace file (required)")
	fs.StringVar(&opts.Key, "key", "", "Filter by account key")
	fs.StringVar(&opts.SyncID, "sync", "", "Filter by synchronizer ID")
	fs.StringVar(&opts.Kind, "kind", "", "Filter by event kind (e.g. pull_applied)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (lifecycle, pull, push, write, fallback, anomaly)")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Only events at or after this time (RFC 3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Only events before this time (RFC 3339)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 || *output == "" {
		fmt.Fprintln(os.Stderr, "Error: trace file path and -o output required")
		fs.Usage()
		os.Exit(1)
	}

	filter, err := opts.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	n, err := commands.RunFilter(fs.Arg(0), filter, *output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `acctsync-log export - Export trace to JSONL or CSV

Usage:
  acctsync-log export [flags] <file.trace>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: trace file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunExport(fs.Arg(0), *format, *output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `acctsync-log stats - Show statistics about the trace

Usage:
  acctsync-log stats <file.trace>
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: trace file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunStats(fs.Arg(0), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
