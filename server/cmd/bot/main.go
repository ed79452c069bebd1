package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"penbrawl/client"
	"penbrawl/config"
	"penbrawl/engine"
	"penbrawl/game"
	"penbrawl/telemetry"
)

var palette = []string{"#e6194b", "#3cb44b", "#4363d8", "#f58231", "#911eb4", "#42d4f4", "#f032e6", "#bfef45"}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadPeer()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	shutdownTracing, err := telemetry.Setup(ctx, "penbrawl-bot", cfg.Telemetry)
	if err != nil {
		slog.ErrorContext(ctx, "failed to setup telemetry", "err", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown tracing", "err", err)
		}
	}()

	slog.InfoContext(ctx, "starting bots", "count", cfg.BotCount, "relay", cfg.RelayURL, "room", cfg.Room)

	eg, ctx := errgroup.WithContext(ctx)
	for i := range cfg.BotCount {
		eg.Go(func() error {
			runBot(ctx, cfg, i)
			return nil
		})
	}
	_ = eg.Wait()
	slog.InfoContext(ctx, "all bots stopped")
}

// runBot は ctx が終わるまで接続と再接続を繰り返します。
func runBot(ctx context.Context, cfg config.Peer, id int) {
	logger := slog.With("bot", id)
	for ctx.Err() == nil {
		err := botSession(ctx, cfg, id, logger)
		if err == nil || ctx.Err() != nil {
			return
		}
		logger.WarnContext(ctx, "bot session ended, reconnecting", "err", err, "delay", cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.ReconnectDelay):
		}
	}
}

func botSession(ctx context.Context, cfg config.Peer, id int, logger *slog.Logger) error {
	channel, err := client.Dial(ctx, cfg.RelayURL)
	if err != nil {
		return err
	}
	defer channel.Close()

	mode := game.DefaultMode
	if cfg.ModeDuration > 0 {
		mode = game.Mode{ID: "timed", Name: "Timed", Duration: cfg.ModeDuration, MaxPlayers: game.DefaultMode.MaxPlayers}
	}
	peer, err := engine.NewPeer(channel, engine.Options{
		Room: cfg.Room,
		Metadata: game.Metadata{
			Name:  fmt.Sprintf("%s-%d", cfg.BotName, id),
			Color: palette[id%len(palette)],
		},
		Mode: mode,
		Sink: client.LogSink{Logger: logger},
	})
	if err != nil {
		return err
	}
	bot := client.NewBot(peer, client.NewController(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))))

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		err := peer.Run(ctx)
		if err == nil && ctx.Err() == nil {
			// ボット側の失敗で止まった場合も再接続させる
			return errors.New("peer stopped")
		}
		return err
	})
	eg.Go(func() error {
		if err := bot.Run(ctx); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
		return nil
	})
	return eg.Wait()
}
