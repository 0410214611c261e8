package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/hansxu66/btcpredict-kalshi/internal/domain"
)

// Route maps one bus channel to a namespace and names the payload field used as the key.
type Route struct {
	Channel   string
	Namespace string
	KeyField  string
}

const calculatorNamespace = "calculator"

// DefaultRoutes is the static channel table.
var DefaultRoutes = []Route{
	{Channel: "calculator:updates", Namespace: calculatorNamespace, KeyField: "ticker_id"},
}

// Router decodes raw bus payloads into Updates.
type Router struct {
	byChannel map[string]Route
	routes    []Route
}

func NewRouter(routes []Route) *Router {
	r := &Router{byChannel: make(map[string]Route, len(routes)), routes: routes}
	for _, route := range routes {
		r.byChannel[route.Channel] = route
	}
	return r
}

// Channels returns the channels to subscribe to, in route order.
func (r *Router) Channels() []string {
	channels := make([]string, 0, len(r.routes))
	for _, route := range r.routes {
		channels = append(channels, route.Channel)
	}
	return channels
}

// Namespaces returns every routed namespace, in route order.
func (r *Router) Namespaces() []string {
	namespaces := make([]string, 0, len(r.routes))
	for _, route := range r.routes {
		namespaces = append(namespaces, route.Namespace)
	}
	return namespaces
}

// Decode turns one bus message into an Update. Payloads on routed channels must be
// JSON objects; anything else only has to be valid JSON and is tagged NamespaceUnknown.
// Payloads are relayed verbatim in websocket text frames, so they must be valid UTF-8.
// Failures wrap domain.ErrDecode.
func (r *Router) Decode(channel string, payload []byte, receivedAt time.Time) (domain.Update, error) {
	if !utf8.Valid(payload) {
		return domain.Update{}, fmt.Errorf("channel %s: %w: invalid UTF-8", channel, domain.ErrDecode)
	}

	route, ok := r.byChannel[channel]
	if !ok {
		if !json.Valid(payload) {
			return domain.Update{}, fmt.Errorf("channel %s: %w: invalid JSON", channel, domain.ErrDecode)
		}
		return domain.Update{
			Namespace:  domain.NamespaceUnknown,
			Key:        domain.KeyUnknown,
			Payload:    json.RawMessage(payload),
			ReceivedAt: receivedAt,
		}, nil
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.Update{}, fmt.Errorf("channel %s: %w: not a JSON object", channel, domain.ErrDecode)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return domain.Update{}, fmt.Errorf("channel %s: %w: %w", channel, domain.ErrDecode, err)
	}

	return domain.Update{
		Namespace:  route.Namespace,
		Key:        extractKey(fields[route.KeyField]),
		Payload:    json.RawMessage(trimmed),
		ReceivedAt: receivedAt,
	}, nil
}

// extractKey accepts a string or a number; anything else yields KeyUnknown.
func extractKey(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return domain.KeyUnknown
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}

	return domain.KeyUnknown
}
