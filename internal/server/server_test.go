package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/pulsehub/internal/config"
	"github.com/pscheid92/pulsehub/internal/hub"
	"github.com/pscheid92/pulsehub/internal/protocol"
)

// newRunningServer starts the echo handler behind an httptest server and
// returns a websocket dialer for /ws.
func newRunningServer(t *testing.T, cfg *config.Config) (*Server, *httptest.Server, func() (*websocket.Conn, error)) {
	t.Helper()

	clock := clockwork.NewRealClock()
	h := hub.New(hub.NewRegistry(), clock, hub.Options{})
	srv := NewServer(cfg, h, clock)

	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)
	t.Cleanup(h.Stop)

	dial := func() (*websocket.Conn, error) {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
		if err == nil {
			t.Cleanup(func() { _ = conn.Close() })
		}
		return conn, err
	}
	return srv, ts, dial
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                "8080",
		MaxConnections:      100,
		MaxConnectionsPerIP: 100,
		ConnectionRate:      1000,
		ConnectionBurst:     1000,
		SendBufferSize:      16,
	}
}

func readWelcome(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := protocol.Decode(frame)
	require.NoError(t, err)
	return env
}

func TestWebSocketFlowWithHealthCount(t *testing.T) {
	srv, ts, dial := newRunningServer(t, testConfig())

	conn, err := dial()
	require.NoError(t, err)

	welcome := readWelcome(t, conn)
	assert.Equal(t, protocol.TypeWelcome, welcome.Type)
	assert.NotEmpty(t, welcome.ClientID)

	// The status surface reflects the registered connection.
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status          string `json:"status"`
		ConnectionCount int    `json:"connectionCount"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, 1, body.ConnectionCount)

	// Closing the client drains the count.
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return srv.hub.ConnectionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUnknownPathReturnsNotFound(t *testing.T) {
	_, ts, _ := newRunningServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/definitely-not-a-route")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpointServes(t *testing.T) {
	_, ts, _ := newRunningServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGlobalLimitRejectsUpgrade(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 1
	_, _, dial := newRunningServer(t, cfg)

	first, err := dial()
	require.NoError(t, err)
	readWelcome(t, first)

	_, err = dial()
	require.Error(t, err)
	assert.ErrorIs(t, err, websocket.ErrBadHandshake)
}
