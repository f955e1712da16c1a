// Package commands implements the acctsync-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/metaDAOproject/acctsync/pkg/synclog"
)

// timestampLayout is used for every timestamp the tool prints.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// RunView writes every event of the trace at path matching filter to w.
func RunView(path string, filter synclog.Filter, w io.Writer) error {
	reader, err := synclog.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
}

// formatEvent writes a one-line representation of the event, followed by
// indented details.
func formatEvent(w io.Writer, event synclog.Event) {
	ts := event.Timestamp.UTC().Format(timestampLayout)
	fmt.Fprintf(w, "%s [sync:%s] %-9s %s", ts, shortenID(event.SyncID), event.Category(), event.Kind)
	if event.Key != "" {
		fmt.Fprintf(w, " key=%s", event.Key)
	}
	if event.Epoch != 0 {
		fmt.Fprintf(w, " epoch=%d", event.Epoch)
	}
	fmt.Fprintln(w)

	if event.Seq != 0 {
		fmt.Fprintf(w, "  Pull: #%d\n", event.Seq)
	}
	if event.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", event.Reason)
	}
	if event.Timeout != nil {
		fmt.Fprintf(w, "  Timeout: %s\n", *event.Timeout)
	}
	if event.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", event.Error)
	}
}

// shortenID returns the first 8 characters of a synchronizer ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// ParseKindFlag parses an event kind name (case-insensitive).
func ParseKindFlag(s string) (synclog.Kind, error) {
	k, ok := synclog.ParseKind(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("invalid kind: %s", s)
	}
	return k, nil
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (synclog.Category, error) {
	switch strings.ToLower(s) {
	case "lifecycle":
		return synclog.CategoryLifecycle, nil
	case "pull":
		return synclog.CategoryPull, nil
	case "push":
		return synclog.CategoryPush, nil
	case "write":
		return synclog.CategoryWrite, nil
	case "fallback":
		return synclog.CategoryFallback, nil
	case "anomaly":
		return synclog.CategoryAnomaly, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be lifecycle, pull, push, write, fallback, or anomaly)", s)
	}
}
