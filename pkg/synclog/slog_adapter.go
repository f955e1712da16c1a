package synclog

import (
	"context"
	"log/slog"
)

// SlogAdapter writes trace events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter that writes to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("sync_id", event.SyncID),
		slog.String("kind", event.Kind.String()),
		slog.String("category", event.Category().String()),
	}

	if event.Key != "" {
		attrs = append(attrs, slog.String("key", event.Key))
	}
	if event.Epoch != 0 {
		attrs = append(attrs, slog.Uint64("epoch", event.Epoch))
	}
	if event.Seq != 0 {
		attrs = append(attrs, slog.Uint64("seq", event.Seq))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	if event.Timeout != nil {
		attrs = append(attrs, slog.Duration("timeout", *event.Timeout))
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "sync", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
