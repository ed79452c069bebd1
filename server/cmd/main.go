package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"penbrawl/config"
	"penbrawl/server"
	"penbrawl/server/domain"
	"penbrawl/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadRelay()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	shutdownTracing, err := telemetry.Setup(ctx, "penbrawl-relay", cfg.Telemetry)
	if err != nil {
		slog.ErrorContext(ctx, "failed to setup telemetry", "err", err)
		os.Exit(1)
	}

	pubsub := domain.NewSimplePubSub()
	roomManager := domain.NewSimpleRoomManager(ctx, pubsub, domain.RoomManagerConfig{
		DefaultRoom:  domain.DefaultRoomID,
		TickInterval: cfg.TickInterval,
		MaxRooms:     cfg.MaxRooms,
	})

	handler := server.Route(pubsub, roomManager, domain.EndpointConfig{
		IdleTimeout:  cfg.IdleTimeout,
		PingInterval: cfg.PingInterval,
	})
	s := server.NewServer(cfg.ListenAddr(), handler)

	serveErr := make(chan error, 1)
	go func() {
		if err := s.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	slog.InfoContext(ctx, "server listening", "addr", s.Addr())

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutdown initiated")
	case err := <-serveErr:
		slog.ErrorContext(ctx, "http server error", "err", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "graceful shutdown failed", "error", err)
		if err := s.Close(); err != nil {
			slog.ErrorContext(shutdownCtx, "forced close failed", "error", err)
		}
	}
	roomManager.Wait()
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "failed to shutdown tracing", "err", err)
	}
	slog.InfoContext(shutdownCtx, "server shutdown complete")
}
