package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types exchanged over a hub connection.
const (
	TypeWelcome     = "welcome"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeBroadcast   = "broadcast"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
)

// TimestampLayout is the ISO 8601 layout used for all outbound timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Envelope is the structured message unit exchanged over a connection.
// ClientID and Timestamp are stamped by the server on outbound envelopes;
// client-supplied values for them are ignored.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Channel   string          `json:"channel,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// Decode parses a raw text frame into an Envelope. It rejects frames that
// are not JSON objects or that carry no type.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("envelope has no type")
	}
	return env, nil
}

// Encode serializes the envelope for the wire.
func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s envelope: %w", e.Type, err)
	}
	return data, nil
}

// FormatTimestamp renders t in the wire timestamp format (UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Welcome builds the envelope sent once to a client right after accept.
func Welcome(clientID string, now time.Time) Envelope {
	return Envelope{Type: TypeWelcome, ClientID: clientID, Timestamp: FormatTimestamp(now)}
}

// Pong builds the reply to a client ping.
func Pong(now time.Time) Envelope {
	return Envelope{Type: TypePong, Timestamp: FormatTimestamp(now)}
}

// Rebroadcast wraps a client payload in a fresh server-stamped broadcast
// envelope for fan-out.
func Rebroadcast(payload json.RawMessage, now time.Time) Envelope {
	return Envelope{Type: TypeBroadcast, Payload: payload, Timestamp: FormatTimestamp(now)}
}
