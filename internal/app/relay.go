package app

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hansxu66/btcpredict-kalshi/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Relay is the application layer between the bus, the state store and the connected
// clients. HandleMessage is called from the single subscriber goroutine; the query
// methods may run concurrently with it.
type Relay struct {
	router      *Router
	store       domain.StateStore
	broadcaster domain.Broadcaster
	bus         domain.BusStatus
	clock       clockwork.Clock
}

// NewRelay wires the relay. bus may be nil, in which case the bus is reported as disconnected.
func NewRelay(router *Router, store domain.StateStore, broadcaster domain.Broadcaster, bus domain.BusStatus, clock clockwork.Clock) *Relay {
	return &Relay{
		router:      router,
		store:       store,
		broadcaster: broadcaster,
		bus:         bus,
		clock:       clock,
	}
}

// HandleMessage decodes one bus message, records it and fans it out. Messages on
// unrouted channels are fanned out but never stored. Decode failures are returned
// for the caller to log; nothing is stored or sent for them.
func (r *Relay) HandleMessage(ctx context.Context, channel string, payload []byte) error {
	update, err := r.router.Decode(channel, payload, r.clock.Now())
	if err != nil {
		return err
	}

	if update.Namespace == domain.NamespaceUnknown {
		slog.WarnContext(ctx, "Message on unrouted channel", "channel", channel)
	} else {
		r.store.Update(update)
		slog.DebugContext(ctx, "State updated", "namespace", update.Namespace, "key", update.Key)
	}

	r.broadcaster.Broadcast(domain.UpdateMessage(update))
	return nil
}

// Health summarises connected clients, tracked keys and bus status.
func (r *Relay) Health() domain.Health {
	namespaces := r.store.KeyCounts()

	tracked := 0
	for _, n := range namespaces {
		tracked += n
	}

	return domain.Health{
		Status:            "ok",
		ConnectedClients:  r.broadcaster.ClientCount(),
		TrackedKeys:       tracked,
		Namespaces:        namespaces,
		BusConnected:      r.bus != nil && r.bus.Connected(),
		CalculatorTickers: namespaces[calculatorNamespace],
	}
}

// StateResponse is the full snapshot keyed by namespace plus a "timestamp" entry.
type StateResponse map[string]any

// State returns every namespace's latest payloads and the current time.
func (r *Relay) State() StateResponse {
	snapshot := r.store.Snapshot()

	resp := make(StateResponse, len(snapshot)+1)
	for ns, keys := range snapshot {
		resp[ns] = keys
	}
	resp["timestamp"] = domain.FormatTimestamp(r.clock.Now())
	return resp
}

// NamespaceState returns one namespace's latest payloads and the current time.
// Untracked namespaces yield domain.ErrNamespaceUnknown.
func (r *Relay) NamespaceState(namespace string) (StateResponse, error) {
	keys, ok := r.store.Namespace(namespace)
	if !ok {
		return nil, domain.ErrNamespaceUnknown
	}
	if keys == nil {
		keys = map[string]json.RawMessage{}
	}

	return StateResponse{
		namespace:   keys,
		"timestamp": domain.FormatTimestamp(r.clock.Now()),
	}, nil
}
