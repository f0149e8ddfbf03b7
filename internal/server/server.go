package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/pscheid92/pulsehub/internal/config"
	"github.com/pscheid92/pulsehub/internal/hub"
)

// Server is the HTTP surface of the hub: the WebSocket upgrade endpoint and
// the out-of-band health and metrics endpoints.
type Server struct {
	echo      *echo.Echo
	config    *config.Config
	hub       *hub.Hub
	limits    *ConnectionLimits
	clock     clockwork.Clock
	startedAt time.Time
	upgrader  websocket.Upgrader
}

// NewServer wires the HTTP server around an existing hub.
func NewServer(cfg *config.Config, h *hub.Hub, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())

	srv := &Server{
		echo:      e,
		config:    cfg,
		hub:       h,
		limits:    NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst),
		clock:     clock,
		startedAt: clock.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards and trading scripts connect from arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	srv.registerRoutes()
	return srv
}

// Start binds the listener and serves until Shutdown. A bind failure is
// returned to the caller, which treats it as fatal.
func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

// Shutdown closes the listener; upgraded connections are drained separately
// by the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
