package hub

import (
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionTrySendDeliversToClient(t *testing.T) {
	conn, client := newServerConnection(t, "conn-1", 16)

	require.NoError(t, conn.TrySend([]byte(`{"type":"pong"}`)))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(testReadTimeout)))
	_, frame, err := client.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(frame))
}

func TestConnectionTrySendAfterClose(t *testing.T) {
	conn, _ := newServerConnection(t, "conn-1", 16)

	conn.Close()
	err := conn.TrySend([]byte("late"))
	assert.True(t, errors.Is(err, ErrConnectionClosed))

	// Close is idempotent.
	conn.Close()
}

func TestConnectionCloseGracefulSendsCloseFrame(t *testing.T) {
	conn, client := newServerConnection(t, "conn-1", 16)

	conn.CloseGraceful("server shutting down")

	require.NoError(t, client.SetReadDeadline(time.Now().Add(testReadTimeout)))
	_, _, err := client.ReadMessage()
	require.Error(t, err)

	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	assert.Equal(t, "server shutting down", closeErr.Text)
}

func TestConnectionMetadata(t *testing.T) {
	before := time.Now()
	conn, _ := newServerConnection(t, "conn-1", 16)

	assert.Equal(t, "conn-1", conn.ID())
	assert.NotEmpty(t, conn.RemoteAddr())
	assert.False(t, conn.ConnectedAt().Before(before.Add(-time.Second)))
}
