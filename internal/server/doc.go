// Package server implements the HTTP surface using the Echo framework.
//
// Routes: /ws (WebSocket upgrade into the hub), /health (status surface),
// /metrics (Prometheus). Admission limits run before the upgrade.
package server
