package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/pulsehub/internal/protocol"
)

// healthResponse is the status surface payload. It is computed from registry
// state only and never blocks on any connection's I/O.
type healthResponse struct {
	Status          string  `json:"status"`
	UptimeSeconds   float64 `json:"uptimeSeconds"`
	ConnectionCount int     `json:"connectionCount"`
	Timestamp       string  `json:"timestamp"`
}

func (s *Server) handleHealth(c echo.Context) error {
	now := s.clock.Now()
	return c.JSON(http.StatusOK, healthResponse{
		Status:          "healthy",
		UptimeSeconds:   now.Sub(s.startedAt).Seconds(),
		ConnectionCount: s.hub.ConnectionCount(),
		Timestamp:       protocol.FormatTimestamp(now),
	})
}
