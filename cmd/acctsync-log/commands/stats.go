package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/metaDAOproject/acctsync/pkg/synclog"
)

// Stats holds aggregate statistics about a trace file.
type Stats struct {
	TotalEvents      int
	EventsByKind     map[synclog.Kind]int
	EventsByCategory map[synclog.Category]int
	Keys             map[string]*KeyStats
	Synchronizers    map[string]int
	Truncated        bool
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// KeyStats holds statistics for a single key.
type KeyStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Epochs    map[uint64]struct{}
	Pulls     int
	Pushes    int
	Writes    int
	Fallbacks int
	Failures  int
	Stale     int
}

// CollectStats reads the whole trace at path.
func CollectStats(path string) (*Stats, error) {
	reader, err := synclog.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByKind:     make(map[synclog.Kind]int),
		EventsByCategory: make(map[synclog.Category]int),
		Keys:             make(map[string]*KeyStats),
		Synchronizers:    make(map[string]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			stats.Truncated = reader.Truncated()
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByKind[event.Kind]++
		stats.EventsByCategory[event.Category()]++
		stats.Synchronizers[event.SyncID]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		if event.Key == "" {
			continue
		}
		ks, ok := stats.Keys[event.Key]
		if !ok {
			ks = &KeyStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
				Epochs:    make(map[uint64]struct{}),
			}
			stats.Keys[event.Key] = ks
		}
		ks.Events++
		if event.Timestamp.After(ks.LastSeen) {
			ks.LastSeen = event.Timestamp
		}
		if event.Epoch != 0 {
			ks.Epochs[event.Epoch] = struct{}{}
		}

		switch event.Kind {
		case synclog.KindPullStarted:
			ks.Pulls++
		case synclog.KindPushApplied:
			ks.Pushes++
		case synclog.KindLocalWrite:
			ks.Writes++
		case synclog.KindFallbackFired:
			ks.Fallbacks++
		case synclog.KindPullFailed, synclog.KindHandlerFailed:
			ks.Failures++
		case synclog.KindStaleDropped:
			ks.Stale++
		}
	}

	return stats, nil
}

// RunStats analyzes the trace file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := CollectStats(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Account Sync Trace Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	if stats.Truncated {
		fmt.Fprintln(w, "Warning: trace ends in a partial record")
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events:  %d\n", stats.TotalEvents)
	fmt.Fprintf(w, "Synchronizers: %d\n", len(stats.Synchronizers))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for c := synclog.CategoryLifecycle; c <= synclog.CategoryAnomaly; c++ {
		if count := stats.EventsByCategory[c]; count > 0 {
			fmt.Fprintf(w, "  %-20s %d\n", c.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Kind:")
	for k := synclog.KindActivated; k <= synclog.KindInvalidated; k++ {
		if count := stats.EventsByKind[k]; count > 0 {
			fmt.Fprintf(w, "  %-20s %d\n", k.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Keys: %d\n", len(stats.Keys))
	if len(stats.Keys) == 0 {
		return
	}

	keys := make([]string, 0, len(stats.Keys))
	for k := range stats.Keys {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return stats.Keys[keys[i]].FirstSeen.Before(stats.Keys[keys[j]].FirstSeen)
	})

	fmt.Fprintln(w)
	for _, k := range keys {
		ks := stats.Keys[k]
		fmt.Fprintf(w, "  [%s] %d events, %d epochs, span %s\n",
			k, ks.Events, len(ks.Epochs), ks.LastSeen.Sub(ks.FirstSeen).Round(time.Millisecond))
		fmt.Fprintf(w, "           pulls=%d pushes=%d writes=%d fallbacks=%d\n",
			ks.Pulls, ks.Pushes, ks.Writes, ks.Fallbacks)
		if ks.Failures > 0 || ks.Stale > 0 {
			fmt.Fprintf(w, "           failures=%d stale=%d\n", ks.Failures, ks.Stale)
		}
	}
}
