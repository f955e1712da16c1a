package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/metaDAOproject/acctsync/pkg/synclog"
)

// FilterOptions holds the filter flags as given on the command line.
type FilterOptions struct {
	Key       string
	SyncID    string
	Kind      string
	Category  string
	TimeStart string
	TimeEnd   string
}

// Build parses the options into a synclog.Filter. Times are RFC 3339.
func (o FilterOptions) Build() (synclog.Filter, error) {
	filter := synclog.Filter{
		Key:    o.Key,
		SyncID: o.SyncID,
	}

	if o.Kind != "" {
		k, err := ParseKindFlag(o.Kind)
		if err != nil {
			return filter, err
		}
		filter.Kind = &k
	}

	if o.Category != "" {
		c, err := ParseCategoryFlag(o.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}

	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	return filter, nil
}

// RunFilter copies the events of path matching filter into a new trace file
// at output and returns how many were written.
func RunFilter(path string, filter synclog.Filter, output string) (int, error) {
	reader, err := synclog.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	logger, err := synclog.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output trace: %w", err)
	}

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Close()
			return count, fmt.Errorf("failed to read event: %w", err)
		}

		logger.Log(event)
		count++
	}

	if err := logger.Close(); err != nil {
		return count, fmt.Errorf("failed to write output trace: %w", err)
	}
	if n := logger.Failed(); n > 0 {
		return count, fmt.Errorf("failed to write %d of %d events", n, count)
	}
	return count, nil
}
