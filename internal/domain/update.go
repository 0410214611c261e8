package domain

import (
	"encoding/json"
	"time"
)

// NamespaceUnknown tags updates from channels without a route. They are
// forwarded to clients but never stored.
const NamespaceUnknown = "unknown"

// KeyUnknown is used when a payload on a routed channel lacks its key field.
const KeyUnknown = "unknown"

// Update is one decoded bus message.
type Update struct {
	Namespace  string
	Key        string
	Payload    json.RawMessage
	ReceivedAt time.Time
}

// Snapshot maps namespace -> key -> latest payload.
type Snapshot map[string]map[string]json.RawMessage

// Health summarises the relay for the status endpoint. CalculatorTickers repeats
// Namespaces["calculator"] for dashboards that read the older field.
type Health struct {
	Status            string         `json:"status"`
	ConnectedClients  int            `json:"connected_clients"`
	TrackedKeys       int            `json:"tracked_keys"`
	Namespaces        map[string]int `json:"namespaces"`
	BusConnected      bool           `json:"bus_connected"`
	CalculatorTickers int            `json:"calculator_tickers"`
}

// --- Interfaces ---

// StateStore holds the latest payload per (namespace, key).
type StateStore interface {
	Update(update Update)
	Snapshot() Snapshot
	Namespace(namespace string) (map[string]json.RawMessage, bool)
	KeyCounts() map[string]int
}

// SnapshotSource is the read side of StateStore used on client join.
type SnapshotSource interface {
	Snapshot() Snapshot
}

// BusStatus reports whether the upstream subscription is currently established.
type BusStatus interface {
	Connected() bool
}

// Broadcaster fans a message out to every live client connection.
type Broadcaster interface {
	Broadcast(msg Message)
	ClientCount() int
}
