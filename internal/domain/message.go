package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType tags the frames pushed to clients.
type MessageType string

const (
	MessageTypeSnapshot MessageType = "state_snapshot"
	MessageTypeUpdate   MessageType = "update"
	MessageTypePong     MessageType = "pong"
)

// Message is the tagged union of frames sent verbatim to client transports.
type Message struct {
	Type      MessageType `json:"type"`
	Source    string      `json:"source,omitempty"`
	Data      any         `json:"data,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// SnapshotMessage builds the frame sent once to a client right after it joins.
func SnapshotMessage(snapshot Snapshot, at time.Time) Message {
	if snapshot == nil {
		snapshot = Snapshot{}
	}
	return Message{
		Type:      MessageTypeSnapshot,
		Data:      snapshot,
		Timestamp: FormatTimestamp(at),
	}
}

// UpdateMessage builds the frame fanned out for every processed Update.
func UpdateMessage(update Update) Message {
	return Message{
		Type:   MessageTypeUpdate,
		Source: update.Namespace,
		Data:   update.Payload,
	}
}

// PongMessage is the reply to an inbound "ping" text frame.
func PongMessage() Message {
	return Message{Type: MessageTypePong}
}

// Encode renders the message as a JSON text frame.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", m.Type, err)
	}
	return data, nil
}

// FormatTimestamp renders t as ISO-8601 in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
