package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr bool
		want    Envelope
	}{
		{
			name:  "broadcast with payload",
			frame: `{"type":"broadcast","payload":"hi"}`,
			want:  Envelope{Type: TypeBroadcast, Payload: json.RawMessage(`"hi"`)},
		},
		{
			name:  "subscribe with channel",
			frame: `{"type":"subscribe","channel":"alpha"}`,
			want:  Envelope{Type: TypeSubscribe, Channel: "alpha"},
		},
		{
			name:  "ping without fields",
			frame: `{"type":"ping"}`,
			want:  Envelope{Type: TypePing},
		},
		{
			name:    "not json",
			frame:   `this is not json`,
			wantErr: true,
		},
		{
			name:    "json but not an object",
			frame:   `[1,2,3]`,
			wantErr: true,
		},
		{
			name:    "missing type",
			frame:   `{"payload":"hi"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.frame))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, env)
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	got := FormatTimestamp(at)
	assert.Equal(t, "2025-03-14T09:26:53.589Z", got)

	parsed, err := time.Parse(time.RFC3339, got)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(at))
}

func TestFormatTimestampConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	at := time.Date(2025, 3, 14, 10, 0, 0, 0, loc)
	assert.Equal(t, "2025-03-14T09:00:00.000Z", FormatTimestamp(at))
}

func TestWelcome(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	env := Welcome("client-1", now)

	assert.Equal(t, TypeWelcome, env.Type)
	assert.Equal(t, "client-1", env.ClientID)
	assert.Equal(t, FormatTimestamp(now), env.Timestamp)

	data, err := env.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"welcome","clientId":"client-1","timestamp":"2025-01-02T03:04:05.000Z"}`, string(data))
}

func TestRebroadcastPreservesPayload(t *testing.T) {
	now := time.Now()
	payload := json.RawMessage(`{"price":42.5,"symbol":"BTC"}`)

	env := Rebroadcast(payload, now)
	data, err := env.Encode()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, TypeBroadcast, decoded.Type)
	assert.JSONEq(t, string(payload), string(decoded.Payload))
	assert.NotEmpty(t, decoded.Timestamp)
}
