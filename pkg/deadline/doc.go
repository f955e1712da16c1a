// Package deadline manages single-shot deadlines, one per key.
//
// A synchronizer arms a deadline after every local write. If nothing cancels
// it before it elapses, its callback forces a reconciling pull.
//
// # Replacement
//
// Setting a deadline for a key that already has one cancels the old one
// first. There is never more than one live deadline per key, and only the
// most recent Set decides when the callback runs.
//
// # Cancellation Races
//
// A deadline that has been replaced or cancelled never runs its callback,
// even if the underlying timer had already fired and was waiting for the
// manager lock.
package deadline
