// Package state holds the latest-wins store of bus payloads.
//
// One writer (the bus subscriber) and many readers (client joins, status queries).
// Guarded by a single RWMutex; Snapshot returns deep map copies so callers never observe
// a partially applied update.
package state
