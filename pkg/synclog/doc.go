// Package synclog records what account synchronizers do.
//
// Every activation, pull, push, local write and fallback timer transition
// can be emitted as an Event. The trace is separate from operational logging
// (slog): it is a complete machine-readable record used to explain why a
// cached value is what it is.
//
// # Basic Usage
//
//	// Development: trace to the console via slog
//	cfg.Tracer = synclog.NewSlogAdapter(logger)
//
//	// Production: append to a CBOR file
//	cfg.Tracer, _ = synclog.NewFileLogger("/var/lib/acctsync/sync.trace")
//
//	// Both
//	cfg.Tracer = synclog.NewMultiLogger(console, file)
//
// # File Format
//
// Trace files are a stream of CBOR maps with integer keys. The acctsync-log
// tool views, filters and summarizes them.
package synclog
