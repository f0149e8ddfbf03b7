package server

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/pulsehub/internal/metrics"
)

// handleWebSocket admits, upgrades, and hands the connection to the hub.
// It blocks for the lifetime of the connection.
func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.ConnectionsRejectedTotal.WithLabelValues(string(reason)).Inc()
		slog.Warn("Rejecting connection", "remote_ip", ip, "reason", reason)

		status := http.StatusServiceUnavailable
		if reason == LimitReasonRate {
			status = http.StatusTooManyRequests
		}
		return c.JSON(status, map[string]string{"error": "connection limit reached"})
	}
	defer s.limits.Release(ip)

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		slog.Warn("Failed to upgrade WebSocket", "remote_ip", ip, "error", err)
		return nil
	}

	s.hub.HandleConnection(c.Request().Context(), conn)
	return nil
}
