/*
store.go - Snapshot store

PURPOSE:
  Holds the latest fetched snapshot. Single-writer: only the poller
  replaces the snapshot; every other component reads the most recently
  published, immutable value, so no reader ever observes a partial
  update.

SEE ALSO:
  - poller.go: the only writer
  - types.go: Snapshot
*/
package engine

import "sync"

// SnapshotStore holds the current snapshot behind a read-write lock.
// Replacement is whole-value; the stored snapshot is never mutated.
type SnapshotStore struct {
	mu      sync.RWMutex
	current *Snapshot
}

// NewSnapshotStore returns an empty store. Current() is nil until the
// first successful poll publishes a snapshot.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Current returns the most recently published snapshot, or nil.
func (s *SnapshotStore) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace publishes a new snapshot.
func (s *SnapshotStore) Replace(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = snap
}
