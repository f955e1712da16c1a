package synclog

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func createTestTrace(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sync.trace")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var events []Event
	for {
		event, err := r.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		events = append(events, event)
	}
}

func TestFileLoggerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.trace")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("trace file was not created")
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := createTestTrace(t, []Event{{SyncID: "s", Kind: KindActivated}})

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Log(Event{SyncID: "s", Kind: KindDeactivated})
	logger.Close()

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	events := readAll(t, r)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[1].Kind != KindDeactivated {
		t.Errorf("second event = %s, want DEACTIVATED", events[1].Kind)
	}
}

func TestFileLoggerIgnoresLogAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.trace")
	logger, _ := NewFileLogger(path)

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	logger.Log(Event{Kind: KindActivated})

	data, _ := os.ReadFile(path)
	if len(data) != 0 {
		t.Errorf("file has %d bytes after closed Log, want 0", len(data))
	}
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.trace")
	logger, _ := NewFileLogger(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			logger.Log(Event{Timestamp: time.Now(), Kind: KindPullStarted, Seq: seq})
		}(uint64(i + 1))
	}
	wg.Wait()
	logger.Close()

	r, _ := NewReader(path)
	defer r.Close()
	if n := len(readAll(t, r)); n != 20 {
		t.Errorf("got %d events, want 20", n)
	}
}

func TestFileLoggerFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.trace")
	logger, _ := NewFileLogger(path)
	defer logger.Close()

	logger.Log(Event{SyncID: "s", Kind: KindActivated})
	if err := logger.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	events, err := ReadAll(path, Filter{})
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d events after Flush, want 1", len(events))
	}
	if logger.Failed() != 0 {
		t.Errorf("Failed() = %d, want 0", logger.Failed())
	}
}
