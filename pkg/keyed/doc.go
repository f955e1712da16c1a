// Package keyed implements the shared keyed cache that account
// synchronizers read from and write to.
//
// A Store maps a key (for example an account address) to an Entry holding the
// last known value and a status. One Store is shared by every synchronizer and
// every reader in a process, so warm data survives individual subscriptions:
// re-subscribing to a key shows its previous value while the refresh runs.
//
// # Entry Status
//
//   - IDLE: no entry exists for the key
//   - PENDING: a pull has been issued and has not resolved
//   - READY: the entry reflects a successful pull, push or local write
//   - ERROR: the last pull failed; the previous value is preserved
//
// # Invalidation
//
// Invalidate marks an entry for re-pull without discarding its value.
// Watchers receive a ChangeInvalidated notification; synchronizers holding
// the key react by issuing a pull.
//
// # Capacity
//
// The store is bounded. When full, the least recently written key is evicted
// and its watchers receive ChangeEvicted. Reads do not affect recency.
package keyed
