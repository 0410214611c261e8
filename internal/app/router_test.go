package app

import (
	"testing"
	"time"

	"github.com/hansxu66/btcpredict-kalshi/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_ChannelsAndNamespaces(t *testing.T) {
	r := NewRouter([]Route{
		{Channel: "calculator:updates", Namespace: "calculator", KeyField: "ticker_id"},
		{Channel: "kalshi:orderbook", Namespace: "kalshi", KeyField: "ticker"},
	})

	assert.Equal(t, []string{"calculator:updates", "kalshi:orderbook"}, r.Channels())
	assert.Equal(t, []string{"calculator", "kalshi"}, r.Namespaces())
}

func TestRouter_DecodeRoutedChannel(t *testing.T) {
	r := NewRouter(DefaultRoutes)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	update, err := r.Decode("calculator:updates", []byte(`{"ticker_id":"BTC","fair_price":101,"fair_std":2}`), at)
	require.NoError(t, err)

	assert.Equal(t, "calculator", update.Namespace)
	assert.Equal(t, "BTC", update.Key)
	assert.JSONEq(t, `{"ticker_id":"BTC","fair_price":101,"fair_std":2}`, string(update.Payload))
	assert.Equal(t, at, update.ReceivedAt)
}

func TestRouter_DecodeKeyExtraction(t *testing.T) {
	r := NewRouter(DefaultRoutes)

	tests := []struct {
		name    string
		payload string
		wantKey string
	}{
		{"string key", `{"ticker_id":"KXBTC-26MAR"}`, "KXBTC-26MAR"},
		{"numeric key", `{"ticker_id":42}`, "42"},
		{"missing key", `{"fair_price":101}`, domain.KeyUnknown},
		{"null key", `{"ticker_id":null}`, domain.KeyUnknown},
		{"object key", `{"ticker_id":{"a":1}}`, domain.KeyUnknown},
		{"surrounding whitespace", "  {\"ticker_id\":\"ETH\"}\n", "ETH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update, err := r.Decode("calculator:updates", []byte(tt.payload), time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, update.Key)
		})
	}
}

func TestRouter_DecodeErrors(t *testing.T) {
	r := NewRouter(DefaultRoutes)

	tests := []struct {
		name    string
		channel string
		payload string
	}{
		{"not JSON", "calculator:updates", "not-json"},
		{"truncated object", "calculator:updates", `{"ticker_id":"BTC"`},
		{"array on routed channel", "calculator:updates", `[1,2,3]`},
		{"string on routed channel", "calculator:updates", `"BTC"`},
		{"null on routed channel", "calculator:updates", `null`},
		{"empty", "calculator:updates", ``},
		{"invalid on unrouted channel", "odds:updates", `{broken`},
		{"invalid UTF-8 in routed object", "calculator:updates", "{\"ticker_id\":\"BTC\",\"note\":\"\xff\xfe\"}"},
		{"invalid UTF-8 on unrouted channel", "odds:updates", "\"\xc3\x28\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Decode(tt.channel, []byte(tt.payload), time.Now())
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrDecode)
		})
	}
}

func TestRouter_DecodeUnroutedChannel(t *testing.T) {
	r := NewRouter(DefaultRoutes)

	update, err := r.Decode("odds:updates", []byte(`[1,2]`), time.Now())
	require.NoError(t, err)

	assert.Equal(t, domain.NamespaceUnknown, update.Namespace)
	assert.Equal(t, domain.KeyUnknown, update.Key)
	assert.JSONEq(t, `[1,2]`, string(update.Payload))
}
