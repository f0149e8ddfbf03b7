package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/pulsehub/internal/metrics"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
)

var (
	// ErrSendBufferFull means the client is not draining its socket fast
	// enough; the caller should treat the connection as broken.
	ErrSendBufferFull = errors.New("send buffer full")

	// ErrConnectionClosed means the connection's writer has already stopped.
	ErrConnectionClosed = errors.New("connection closed")
)

// Connection is a single accepted client session. It exclusively owns its
// websocket until closed; all writes go through the writer goroutine so no
// two goroutines ever write to the socket concurrently.
type Connection struct {
	id          string
	ws          *websocket.Conn
	clock       clockwork.Clock
	connectedAt time.Time
	remoteAddr  string

	// Owned by the Registry, mutated only under its lock.
	subscriptions map[string]struct{}

	sendCh   chan []byte
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newConnection(id string, ws *websocket.Conn, clock clockwork.Clock, sendBuffer int) *Connection {
	remoteAddr := ""
	if addr := ws.RemoteAddr(); addr != nil {
		remoteAddr = addr.String()
	}

	c := &Connection{
		id:            id,
		ws:            ws,
		clock:         clock,
		connectedAt:   clock.Now(),
		remoteAddr:    remoteAddr,
		subscriptions: make(map[string]struct{}),
		sendCh:        make(chan []byte, sendBuffer),
		done:          make(chan struct{}),
	}
	c.configurePongHandler()
	c.wg.Add(1)
	go c.writeLoop()
	return c
}

// ID returns the connection's unique identity.
func (c *Connection) ID() string { return c.id }

// RemoteAddr returns the peer address, or "" if unknown.
func (c *Connection) RemoteAddr() string { return c.remoteAddr }

// ConnectedAt returns the accept timestamp.
func (c *Connection) ConnectedAt() time.Time { return c.connectedAt }

// TrySend queues a message for delivery without blocking. Returns
// ErrSendBufferFull when the client has fallen too far behind and
// ErrConnectionClosed once the writer has stopped.
func (c *Connection) TrySend(msg []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Connection) writeLoop() {
	ticker := c.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.wg.Done()

	for {
		select {
		case msg := <-c.sendCh:
			start := c.clock.Now()
			c.updateWriteDeadline()
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
			metrics.MessageSendDuration.Observe(c.clock.Since(start).Seconds())
		case <-ticker.Chan():
			c.updateWriteDeadline()
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.KeepalivePingFailures.Inc()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close tears the connection down immediately. Safe to call more than once
// and from any goroutine; the underlying socket close makes the read loop
// fail, which unregisters the connection through its normal error path.
func (c *Connection) Close() {
	c.stopOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
	c.wg.Wait()
}

// CloseGraceful sends a close frame with the given reason before closing.
// Used during drain so well-behaved clients see a normal closure.
func (c *Connection) CloseGraceful(reason string) {
	c.stopOnce.Do(func() {
		close(c.done)
		// The writer must have exited before we touch the socket here.
		c.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		c.updateWriteDeadline()
		_ = c.ws.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = c.ws.Close()
	})
	c.wg.Wait()
}

func (c *Connection) configurePongHandler() {
	c.updateReadDeadline()
	c.ws.SetPongHandler(func(string) error {
		c.updateReadDeadline()
		return nil
	})
}

func (c *Connection) updateWriteDeadline() {
	_ = c.ws.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
}

func (c *Connection) updateReadDeadline() {
	_ = c.ws.SetReadDeadline(c.clock.Now().Add(pongDeadline))
}
