// Package notify implements an in-process change notifier.
//
// A Hub lets consumers register a callback for a key (an account address)
// and lets a producer publish change events for that key. It is the push
// side of account synchronization: the remote source publishes, synchronizers
// subscribe.
//
// # Delivery
//
// Publish delivers an event to every subscriber of the key, in subscription
// order, at most once each. Publishes are serialized, so subscribers observe
// events in the order they were published. Delivery happens outside the
// registry lock: a subscriber may unsubscribe (itself or others) from inside
// its callback.
//
// # Handles
//
// Subscribe returns an opaque handle (a UUID string). The owner must pass it
// to Unsubscribe on every exit path; subscriptions are never cleaned up
// automatically.
//
// # Guarantees for Synchronizers
//
// Subscribe never delivers synchronously, and Unsubscribe never waits for an
// in-flight delivery. A synchronizer may therefore call both while holding its
// own lock.
package notify
