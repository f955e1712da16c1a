package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/metaDAOproject/acctsync/pkg/synclog"
)

// jsonEvent is the JSONL representation of a trace event.
type jsonEvent struct {
	Timestamp string `json:"timestamp"`
	SyncID    string `json:"sync_id"`
	Key       string `json:"key,omitempty"`
	Epoch     uint64 `json:"epoch,omitempty"`
	Kind      string `json:"kind"`
	Category  string `json:"category"`
	Seq       uint64 `json:"seq,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
	Timeout   string `json:"timeout,omitempty"`
}

// RunExport converts the trace at path to format (jsonl or csv), writing to
// output or stdout when output is empty.
func RunExport(path, format, output string) error {
	if format != "jsonl" && format != "csv" {
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	reader, err := synclog.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "csv" {
		return exportCSV(reader, w)
	}
	return exportJSONL(reader, w)
}

func toJSON(event synclog.Event) jsonEvent {
	je := jsonEvent{
		Timestamp: event.Timestamp.UTC().Format(timestampLayout),
		SyncID:    event.SyncID,
		Key:       event.Key,
		Epoch:     event.Epoch,
		Kind:      event.Kind.String(),
		Category:  event.Category().String(),
		Seq:       event.Seq,
		Reason:    event.Reason,
		Error:     event.Error,
	}
	if event.Timeout != nil {
		je.Timeout = event.Timeout.String()
	}
	return je
}

func exportJSONL(reader *synclog.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(toJSON(event)); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
}

func exportCSV(reader *synclog.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "sync_id", "key", "epoch", "kind", "category", "seq", "reason", "error"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		je := toJSON(event)
		row := []string{
			je.Timestamp,
			je.SyncID,
			je.Key,
			strconv.FormatUint(je.Epoch, 10),
			je.Kind,
			je.Category,
			strconv.FormatUint(je.Seq, 10),
			je.Reason,
			je.Error,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
}
