package correlation

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID_LengthAndUnique(t *testing.T) {
	ids := make(map[string]struct{}, 100)
	for range 100 {
		id := NewID()
		assert.Len(t, id, 8)
		ids[id] = struct{}{}
	}
	assert.Len(t, ids, 100)
}

func TestFromHeader(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		reused bool
	}{
		{"empty", "", false},
		{"valid", "req-42", true},
		{"uuid", "0b5e6c1a-54a4-4a4a-9a4e-2b8e0c1f3d11", true},
		{"too long", strings.Repeat("a", 65), false},
		{"space", "two words", false},
		{"newline", "abc\nINFO forged", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromHeader(tt.value)
			if tt.reused {
				assert.Equal(t, tt.value, got)
			} else {
				assert.NotEqual(t, tt.value, got)
				assert.Len(t, got, 8)
			}
		})
	}
}

func TestID_Roundtrip(t *testing.T) {
	id, ok := ID(WithID(context.Background(), "abc12345"))
	assert.True(t, ok)
	assert.Equal(t, "abc12345", id)

	_, ok = ID(context.Background())
	assert.False(t, ok)

	_, ok = ID(WithID(context.Background(), ""))
	assert.False(t, ok)
}

func newBufferedLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewHandler(inner)), &buf
}

func TestHandler_AddsCorrelationID(t *testing.T) {
	logger, buf := newBufferedLogger()

	logger.InfoContext(WithID(context.Background(), "test1234"), "client joined", "total_clients", 3)

	output := buf.String()
	assert.Contains(t, output, "correlation_id=test1234")
	assert.Contains(t, output, "total_clients=3")
}

func TestHandler_NoCorrelationID_WhenMissing(t *testing.T) {
	logger, buf := newBufferedLogger()

	logger.InfoContext(context.Background(), "no correlation")

	assert.NotContains(t, buf.String(), "correlation_id")
}

func TestHandler_WithAttrsAndGroup(t *testing.T) {
	logger, buf := newBufferedLogger()
	logger = logger.With("component", "subscriber").WithGroup("bus")

	logger.InfoContext(WithID(context.Background(), "attr1234"), "message", "channel", "calculator:updates")

	output := buf.String()
	assert.Contains(t, output, "component=subscriber")
	assert.Contains(t, output, "bus.channel=calculator:updates")
	assert.Contains(t, output, "correlation_id=attr1234")
}
