package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/pulsehub/internal/bridge"
	"github.com/pscheid92/pulsehub/internal/config"
	"github.com/pscheid92/pulsehub/internal/hub"
	"github.com/pscheid92/pulsehub/internal/logging"
	"github.com/pscheid92/pulsehub/internal/server"
	"github.com/pscheid92/pulsehub/internal/version"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupBridge(cfg *config.Config) *bridge.Bridge {
	if cfg.RedisURL == "" {
		slog.Info("Bridge disabled, running standalone")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	br, err := bridge.New(ctx, cfg.RedisURL, uuid.NewString())
	if err != nil {
		slog.Error("Failed to connect bridge", "error", err)
		os.Exit(1)
	}
	slog.Info("Bridge connected")
	return br
}

func runGracefulShutdown(srv *server.Server, h *hub.Hub, br *bridge.Bridge) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, draining...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		h.Stop()

		if br != nil {
			br.Close()
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Hub starting",
		"env", cfg.AppEnv,
		"port", cfg.Port,
		"version", version.Get().Version,
	)

	br := setupBridge(cfg)

	// Assign the publisher only when the bridge exists to avoid a typed-nil
	// interface inside the hub.
	var publisher hub.Publisher
	if br != nil {
		publisher = br
	}

	h := hub.New(hub.NewRegistry(), clock, hub.Options{
		SendBufferSize: cfg.SendBufferSize,
		DrainTimeout:   cfg.DrainTimeout,
		Publisher:      publisher,
	})
	if br != nil {
		br.Start(h.DeliverRemote)
	}

	srv := server.NewServer(cfg, h, clock)
	done := runGracefulShutdown(srv, h, br)

	slog.Info("Server listening", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
