package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	config "github.com/xilidan/meetings/config/asr"
	"github.com/xilidan/meetings/pkg/logger"
	"github.com/xilidan/meetings/pkg/openai"
	"github.com/xilidan/meetings/services/asr/server"
	"github.com/xilidan/meetings/services/asr/usecase"
	"github.com/xilidan/meetings/services/meeting/provider"
)

func main() {
	cfg := config.MustLoad()

	log := logger.New(logger.Config{
		Level:      logger.ParseLevel(cfg.LogLevel),
		Output:     os.Stderr,
		AddSource:  true,
		JSONFormat: cfg.LogJSON,
	})

	ctx := logger.WithContext(context.Background(), log)

	rootCtx, cancel := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer cancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("failed to run()", slog.String("error", err.Error()))
		return
	}
}

func newBackend(cfg *config.Config) (provider.Transcriber, error) {
	switch cfg.Backend.Provider {
	case "openai":
		client := openai.New(openai.Config{
			APIKey:             cfg.OpenAIAPIKey,
			BaseURL:            cfg.Backend.BaseURL,
			TranscriptionModel: cfg.Backend.Model,
		})
		return provider.NewOpenAI(client), nil
	case "mock", "":
		return provider.MockTranscriber{}, nil
	default:
		return nil, fmt.Errorf("unknown asr provider %q", cfg.Backend.Provider)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}
	backend = provider.InstrumentTranscriber(backend, cfg.Backend.Provider, cfg.Backend.Timeout, nil)

	usc := usecase.New(backend, cfg.MaxAudioSize, log)

	srv := server.NewServerOptions(usc, cfg.MaxAudioSize, log)
	grpcServer, err := srv.NewServer()
	if err != nil {
		log.Error("failed to create grpc server", slog.String("error", err.Error()))
		return err
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	address := fmt.Sprintf(":%d", cfg.Port)
	grpcListener, err := net.Listen("tcp", address)
	if err != nil {
		log.Error("failed to listen on grpc port", slog.String("error", err.Error()))
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}

	go func() {
		serverErrors <- grpcServer.Serve(grpcListener)
	}()
	log.Info("asr grpc service started",
		slog.String("address", address),
		slog.String("backend", cfg.Backend.Provider),
	)

	select {
	case err := <-serverErrors:
		log.Info("grpc server has closed")
		return fmt.Errorf("grpc server has closed: %w", err)
	case sig := <-shutdown:
		log.Info("start shutdown", slog.String("signal", sig.String()))
		grpcServer.GracefulStop()
	case <-ctx.Done():
		log.Info("closing grpc server due to context cancellation")
		grpcServer.GracefulStop()
	}

	return nil
}
