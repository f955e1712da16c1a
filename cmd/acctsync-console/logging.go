package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

// newLogger returns a logger writing text to w and, if path is set, JSON to
// path. The returned function closes the log file.
func newLogger(level slog.Level, w io.Writer, path string) (*slog.Logger, func(), error) {
	opts := &slog.HandlerOptions{Level: level}

	handlers := []slog.Handler{
		slog.NewTextHandler(w, opts),
	}

	closeFn := func() {}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, opts))
		closeFn = func() { _ = f.Close() }
	}

	return slog.New(slogmulti.Fanout(handlers...)), closeFn, nil
}

// redirectWriter forwards writes to a target that can be replaced.
type redirectWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newRedirectWriter(w io.Writer) *redirectWriter {
	return &redirectWriter{w: w}
}

// Redirect sends subsequent writes to w.
func (r *redirectWriter) Redirect(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.w = w
}

func (r *redirectWriter) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w.Write(p)
}
