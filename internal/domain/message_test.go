package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateMessage_Encode(t *testing.T) {
	update := Update{
		Namespace: "calculator",
		Key:       "BTC",
		Payload:   json.RawMessage(`{"ticker_id":"BTC","fair_price":101,"fair_std":2}`),
	}

	data, err := UpdateMessage(update).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"update","source":"calculator","data":{"ticker_id":"BTC","fair_price":101,"fair_std":2}}`, string(data))
}

func TestPongMessage_Encode(t *testing.T) {
	data, err := PongMessage().Encode()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"pong"}`, string(data))
}

func TestSnapshotMessage_Encode(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	snapshot := Snapshot{
		"calculator": {"BTC": json.RawMessage(`{"ticker_id":"BTC"}`)},
	}

	data, err := SnapshotMessage(snapshot, at).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"state_snapshot","data":{"calculator":{"BTC":{"ticker_id":"BTC"}}},"timestamp":"2026-01-02T03:04:05Z"}`, string(data))
}

func TestSnapshotMessage_EmptyStoreStillHasData(t *testing.T) {
	data, err := SnapshotMessage(nil, time.Unix(0, 0)).Encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, map[string]any{}, decoded["data"])
}
