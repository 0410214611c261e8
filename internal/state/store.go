package state

import (
	"encoding/json"
	"sync"

	"github.com/hansxu66/btcpredict-kalshi/internal/domain"
)

// Store maps namespace -> key -> latest Update.
type Store struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]domain.Update
}

// NewStore creates a store with the given namespaces pre-seeded, so snapshots
// list them even before their first update.
func NewStore(namespaces ...string) *Store {
	s := &Store{namespaces: make(map[string]map[string]domain.Update, len(namespaces))}
	for _, ns := range namespaces {
		s.namespaces[ns] = make(map[string]domain.Update)
	}
	return s
}

// Update stores u, unconditionally replacing any earlier value for its key.
func (s *Store) Update(u domain.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, exists := s.namespaces[u.Namespace]
	if !exists {
		keys = make(map[string]domain.Update)
		s.namespaces[u.Namespace] = keys
	}
	keys[u.Key] = u
}

// Snapshot returns a point-in-time copy of every namespace.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(domain.Snapshot, len(s.namespaces))
	for ns, keys := range s.namespaces {
		snapshot[ns] = copyPayloads(keys)
	}
	return snapshot
}

// Namespace returns a copy of one namespace.
func (s *Store) Namespace(namespace string) (map[string]json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, ok := s.namespaces[namespace]
	if !ok {
		return nil, false
	}
	return copyPayloads(keys), true
}

// KeyCounts returns the number of tracked keys per namespace without copying payloads.
func (s *Store) KeyCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(s.namespaces))
	for ns, keys := range s.namespaces {
		counts[ns] = len(keys)
	}
	return counts
}

// Payload bytes are shared: an Update is immutable once stored.
func copyPayloads(keys map[string]domain.Update) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(keys))
	for key, u := range keys {
		out[key] = u.Payload
	}
	return out
}
