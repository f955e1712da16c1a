// Package accountsync keeps a cached copy of one remote record fresh.
//
// A Synchronizer tracks at most one key at a time. It reconciles three
// sources of updates into a shared keyed.Store:
//
//   - pulls: a Fetcher call issued on activation, on explicit refresh or
//     invalidation, and when the fallback timer fires
//   - pushes: change events delivered by a Notifier subscription
//   - local writes: optimistic values written by the caller through Update
//
// # Ordering
//
// A push is authoritative: it is written and cancels the fallback timer.
// A local write is provisional: it is written immediately and (re)arms the
// fallback timer. If no push arrives before the timer fires, a pull is issued
// and its result overwrites whatever is cached. Values are never compared;
// the last applicable rule wins.
//
// # Epochs
//
// Every activation starts a new epoch. Pull results, push events and timer
// firings carry the epoch they were issued under and are dropped when it is
// no longer current. Within an epoch a pull result is also dropped when a
// newer pull already completed, or when a push or local write was applied
// after the pull was issued.
//
// # Concurrency
//
// All state transitions run under one mutex, in arrival order. Fetches run on
// their own goroutine and re-enter under the mutex. Store writes happen with
// the mutex held, so store watchers must not call mutating Synchronizer
// methods synchronously. Read never blocks on the mutex and may be called
// from anywhere.
//
// # Teardown
//
// Deactivate (or Activate with a different key) synchronously cancels the
// fallback timer, unsubscribes from the Notifier and cancels in-flight
// fetches. Close additionally waits for fetch goroutines to return.
package accountsync
