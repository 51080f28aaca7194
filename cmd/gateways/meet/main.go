package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	config "github.com/xilidan/meetings/config/meet"
	"github.com/xilidan/meetings/gateways/meet"
	"github.com/xilidan/meetings/pkg/logger"
)

func main() {
	cfg := config.MustLoad()

	log := logger.New(logger.Config{
		Level:      logger.ParseLevel(cfg.LogLevel),
		Output:     os.Stderr,
		AddSource:  true,
		JSONFormat: cfg.LogJSON,
	})
	logger.SetDefault(log)
	log.Info("configuration loaded",
		slog.Int("port", cfg.Port),
		slog.String("stt_provider", cfg.STT.Provider),
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.Bool("postgres", cfg.Postgres.DSN != ""),
		slog.Bool("redis", cfg.Redis.Addr != ""),
		slog.Bool("webhook", cfg.Webhook.URL != ""),
		slog.Bool("auth", cfg.JWTSecret != ""),
	)

	ctx := logger.WithContext(context.Background(), log)

	rootCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("failed to run()", slog.String("error", err.Error()))
		return
	}
	log.Info("application terminated successfully")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	srv, err := meet.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	return srv.Start(ctx)
}
