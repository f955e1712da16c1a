// Package snapshot persists warm keyed.Store entries across restarts.
//
// Only entries holding a value are captured. Restored entries are seeded as
// invalidated, so the first activation of each key serves the saved value
// while it pulls a fresh one.
package snapshot
