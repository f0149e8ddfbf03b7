package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints, out-of-band from the messaging protocol
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// WebSocket upgrade; everything else gets echo's default 404
	s.echo.GET("/ws", s.handleWebSocket)
}
