package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/pulsehub/internal/protocol"
)

const testReadTimeout = 2 * time.Second

var testUpgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// newSocketPair returns the server and client halves of a live websocket.
func newSocketPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	serverCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		serverCh <- ws
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	server := <-serverCh
	t.Cleanup(func() { _ = server.Close() })
	return server, client
}

// newServerConnection wraps the server half of a fresh socket pair in a
// Connection, returning the client half for driving it.
func newServerConnection(t *testing.T, id string, sendBuffer int) (*Connection, *websocket.Conn) {
	t.Helper()

	server, client := newSocketPair(t)
	conn := newConnection(id, server, clockwork.NewRealClock(), sendBuffer)
	t.Cleanup(conn.Close)
	return conn, client
}

// newTestHub sets up a Hub behind an httptest server and returns a dialer.
func newTestHub(t *testing.T, opts Options) (*Hub, func() *websocket.Conn) {
	t.Helper()

	h := New(NewRegistry(), clockwork.NewRealClock(), opts)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.HandleConnection(r.Context(), ws)
	}))
	t.Cleanup(server.Close)
	t.Cleanup(h.Stop)

	dial := func() *websocket.Conn {
		t.Helper()
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	}

	return h, dial
}

// readEnvelope reads and decodes the next text frame, failing the test on
// timeout.
func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testReadTimeout)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	env, err := protocol.Decode(frame)
	require.NoError(t, err)
	return env
}

// expectNoFrame asserts that no frame arrives within the given window.
func expectNoFrame(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(window)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}
