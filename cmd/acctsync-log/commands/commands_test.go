package commands

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/metaDAOproject/acctsync/pkg/synclog"
)

var ts = time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)

func createTestTrace(t *testing.T, events []synclog.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sync.trace")

	logger, err := synclog.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create trace: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func sampleEvents() []synclog.Event {
	timeout := 45 * time.Second
	return []synclog.Event{
		{Timestamp: ts, SyncID: "0123456789abcdef", Key: "acct-1", Epoch: 1, Kind: synclog.KindActivated},
		{Timestamp: ts, SyncID: "0123456789abcdef", Key: "acct-1", Epoch: 1, Kind: synclog.KindPullStarted, Seq: 1, Reason: "activate"},
		{Timestamp: ts.Add(5 * time.Second), SyncID: "0123456789abcdef", Key: "acct-1", Epoch: 1, Kind: synclog.KindPullApplied, Seq: 1},
		{Timestamp: ts.Add(6 * time.Second), SyncID: "0123456789abcdef", Key: "acct-1", Epoch: 1, Kind: synclog.KindLocalWrite},
		{Timestamp: ts.Add(6 * time.Second), SyncID: "0123456789abcdef", Key: "acct-1", Epoch: 1, Kind: synclog.KindFallbackArmed, Timeout: &timeout},
		{Timestamp: ts.Add(51 * time.Second), SyncID: "0123456789abcdef", Key: "acct-1", Epoch: 1, Kind: synclog.KindFallbackFired},
		{Timestamp: ts.Add(52 * time.Second), SyncID: "0123456789abcdef", Key: "acct-2", Epoch: 2, Kind: synclog.KindPullFailed, Error: "rpc unavailable"},
		{Timestamp: ts.Add(53 * time.Second), SyncID: "fedcba98", Key: "acct-2", Epoch: 1, Kind: synclog.KindStaleDropped, Reason: "epoch ended"},
	}
}

func TestRunViewFormatsEvents(t *testing.T) {
	path := createTestTrace(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunView(path, synclog.Filter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"2026-01-28T10:00:00.000000Z [sync:01234567] LIFECYCLE ACTIVATED key=acct-1 epoch=1",
		"  Pull: #1",
		"  Reason: activate",
		"  Timeout: 45s",
		"  Error: rpc unavailable",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestRunViewFilters(t *testing.T) {
	path := createTestTrace(t, sampleEvents())
	anomaly := synclog.CategoryAnomaly

	var buf bytes.Buffer
	if err := RunView(path, synclog.Filter{Category: &anomaly}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "ACTIVATED") {
		t.Error("filtered view contains lifecycle events")
	}
	if !strings.Contains(output, "PULL_FAILED") || !strings.Contains(output, "STALE_DROPPED") {
		t.Errorf("filtered view missing anomalies:\n%s", output)
	}
}

func TestRunViewMissingFile(t *testing.T) {
	var buf bytes.Buffer
	if err := RunView("/nonexistent/sync.trace", synclog.Filter{}, &buf); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseKindFlag(t *testing.T) {
	k, err := ParseKindFlag("pull_applied")
	if err != nil || k != synclog.KindPullApplied {
		t.Errorf("ParseKindFlag(pull_applied) = %v, %v", k, err)
	}
	if _, err := ParseKindFlag("bogus"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestParseCategoryFlag(t *testing.T) {
	c, err := ParseCategoryFlag("Fallback")
	if err != nil || c != synclog.CategoryFallback {
		t.Errorf("ParseCategoryFlag(Fallback) = %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("bogus"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestCollectStats(t *testing.T) {
	path := createTestTrace(t, sampleEvents())

	stats, err := CollectStats(path)
	if err != nil {
		t.Fatalf("CollectStats failed: %v", err)
	}

	if stats.TotalEvents != 8 {
		t.Errorf("TotalEvents = %d, want 8", stats.TotalEvents)
	}
	if len(stats.Synchronizers) != 2 {
		t.Errorf("Synchronizers = %d, want 2", len(stats.Synchronizers))
	}

	acct1 := stats.Keys["acct-1"]
	if acct1 == nil {
		t.Fatal("no stats for acct-1")
	}
	if acct1.Pulls != 1 || acct1.Writes != 1 || acct1.Fallbacks != 1 {
		t.Errorf("acct-1 pulls=%d writes=%d fallbacks=%d, want 1/1/1", acct1.Pulls, acct1.Writes, acct1.Fallbacks)
	}

	acct2 := stats.Keys["acct-2"]
	if acct2.Failures != 1 || acct2.Stale != 1 {
		t.Errorf("acct-2 failures=%d stale=%d, want 1/1", acct2.Failures, acct2.Stale)
	}
	if len(acct2.Epochs) != 2 {
		t.Errorf("acct-2 epochs = %d, want 2", len(acct2.Epochs))
	}
}

func TestRunStatsOutput(t *testing.T) {
	path := createTestTrace(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"Total Events:  8", "FALLBACK:", "PULL_FAILED:", "[acct-1]", "Duration:   53s"} {
		if !strings.Contains(output, want) {
			t.Errorf("stats output missing %q:\n%s", want, output)
		}
	}
}

func TestRunStatsEmptyTrace(t *testing.T) {
	path := createTestTrace(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Keys: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestRunExportJSONL(t *testing.T) {
	path := createTestTrace(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("invalid JSON line: %v", err)
		}
		lines = append(lines, m)
	}

	if len(lines) != 8 {
		t.Fatalf("got %d lines, want 8", len(lines))
	}
	if lines[4]["kind"] != "FALLBACK_ARMED" || lines[4]["timeout"] != "45s" {
		t.Errorf("line 5 = %v", lines[4])
	}
}

func TestRunExportCSV(t *testing.T) {
	path := createTestTrace(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data, _ := os.ReadFile(out)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 9 {
		t.Fatalf("got %d records, want 9 (header + 8)", len(records))
	}
	if records[0][4] != "kind" || records[7][8] != "rpc unavailable" {
		t.Errorf("unexpected CSV content: %v", records)
	}
}

func TestRunExportUnknownFormat(t *testing.T) {
	path := createTestTrace(t, sampleEvents())
	if err := RunExport(path, "xml", ""); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestCollectStatsTruncatedTrace(t *testing.T) {
	path := createTestTrace(t, sampleEvents())
	info, _ := os.Stat(path)
	if err := os.Truncate(path, info.Size()-2); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	stats, err := CollectStats(path)
	if err != nil {
		t.Fatalf("CollectStats failed: %v", err)
	}
	if !stats.Truncated {
		t.Error("Truncated = false for a cut trace")
	}
	if stats.TotalEvents != 7 {
		t.Errorf("TotalEvents = %d, want 7", stats.TotalEvents)
	}

	var buf bytes.Buffer
	printStats(&buf, stats)
	if !strings.Contains(buf.String(), "partial record") {
		t.Errorf("stats output lacks truncation warning:\n%s", buf.String())
	}
}

func TestRunFilterWritesMatchingEvents(t *testing.T) {
	path := createTestTrace(t, sampleEvents())
	output := filepath.Join(t.TempDir(), "acct-2.trace")

	n, err := RunFilter(path, synclog.Filter{Key: "acct-2"}, output)
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("RunFilter wrote %d events, want 2", n)
	}

	events, err := synclog.ReadAll(output, synclog.Filter{})
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("output has %d events, want 2", len(events))
	}
	if events[0].Kind != synclog.KindPullFailed || events[1].Kind != synclog.KindStaleDropped {
		t.Errorf("output kinds = %v, %v", events[0].Kind, events[1].Kind)
	}
}

func TestRunFilterMissingFile(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out.trace")
	if _, err := RunFilter("/nonexistent/sync.trace", synclog.Filter{}, output); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFilterOptionsBuild(t *testing.T) {
	opts := FilterOptions{
		Key:       "acct-1",
		Kind:      "fallback_fired",
		Category:  "fallback",
		TimeStart: "2026-01-28T10:00:30Z",
		TimeEnd:   "2026-01-28T10:01:00Z",
	}

	filter, err := opts.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if filter.Kind == nil || *filter.Kind != synclog.KindFallbackFired {
		t.Errorf("Kind = %v", filter.Kind)
	}
	if filter.TimeStart == nil || !filter.TimeStart.Equal(ts.Add(30*time.Second)) {
		t.Errorf("TimeStart = %v", filter.TimeStart)
	}

	var matched int
	for _, e := range sampleEvents() {
		if filter.Matches(e) {
			matched++
		}
	}
	if matched != 1 {
		t.Errorf("filter matched %d sample events, want 1", matched)
	}
}

func TestFilterOptionsBuildErrors(t *testing.T) {
	tests := []FilterOptions{
		{Kind: "nope"},
		{Category: "nope"},
		{TimeStart: "yesterday"},
		{TimeEnd: "2026-01-28"},
	}
	for _, opts := range tests {
		if _, err := opts.Build(); err == nil {
			t.Errorf("Build(%+v) succeeded, want error", opts)
		}
	}
}
