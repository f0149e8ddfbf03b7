package correlation

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionIDRoundTrip(t *testing.T) {
	ctx := context.Background()

	id, ok := ConnectionID(ctx)
	assert.False(t, ok)
	assert.Empty(t, id)

	ctx = WithConnectionID(ctx, "conn-42")
	id, ok = ConnectionID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "conn-42", id)
}

func TestHandlerInjectsConnectionID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithConnectionID(context.Background(), "conn-42")
	logger.InfoContext(ctx, "frame dispatched")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "conn-42", record["connection_id"])
}

func TestHandlerWithoutConnectionID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewJSONHandler(&buf, nil)))

	logger.Info("starting up")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.NotContains(t, record, "connection_id")
}
