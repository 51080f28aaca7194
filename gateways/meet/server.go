package meet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	config "github.com/xilidan/meetings/config/meet"
	asrClient "github.com/xilidan/meetings/gateways/meet/clients/asr"
	webhookClient "github.com/xilidan/meetings/gateways/meet/clients/webhook"
	"github.com/xilidan/meetings/gateways/meet/handler"
	"github.com/xilidan/meetings/gateways/meet/monitor"
	"github.com/xilidan/meetings/pkg/openai"
	"github.com/xilidan/meetings/services/meeting/analysis"
	"github.com/xilidan/meetings/services/meeting/events"
	"github.com/xilidan/meetings/services/meeting/ingest"
	"github.com/xilidan/meetings/services/meeting/observability"
	"github.com/xilidan/meetings/services/meeting/provider"
	"github.com/xilidan/meetings/services/meeting/query"
	"github.com/xilidan/meetings/services/meeting/session"
	"github.com/xilidan/meetings/services/meeting/storage"
	"github.com/xilidan/meetings/services/meeting/usecase"
)

type Server struct {
	cfg       *config.Config
	log       *slog.Logger
	store     storage.Storage
	publisher events.Publisher
	monitor   *monitor.MeetingMonitor
	pool      *ingest.Pool
	router    chi.Router
	closers   []io.Closer
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Server, error) {
	log.Info("creating new meet server")
	s := &Server{cfg: cfg, log: log}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	stt, err := s.newTranscriber(metrics)
	if err != nil {
		return nil, err
	}
	llm, err := s.newGenerator(metrics)
	if err != nil {
		s.closeAll()
		return nil, err
	}

	store, err := s.newStorage(ctx)
	if err != nil {
		s.closeAll()
		return nil, err
	}
	s.store = store

	sinks, err := s.newSinks(ctx)
	if err != nil {
		s.closeAll()
		store.Close()
		return nil, err
	}

	s.monitor = monitor.New(cfg.Meeting.IdleTimeout, log)
	s.publisher = events.Multi(log,
		events.Async(events.Multi(log, sinks...), cfg.Events.Buffer, cfg.Events.Timeout, log),
		s.monitor,
	)

	sessions := session.New(store, log,
		session.WithPublisher(s.publisher),
		session.WithMetrics(metrics),
	)
	if err := sessions.RestoreMetrics(ctx); err != nil {
		log.Warn("failed to seed active meetings gauge", slog.String("error", err.Error()))
	}
	s.monitor.Bind(sessions)
	if err := s.monitor.Restore(ctx); err != nil {
		log.Warn("failed to restore idle timers", slog.String("error", err.Error()))
	}

	s.pool = ingest.NewPool(cfg.Ingest.Workers, cfg.Ingest.QueueSize, metrics, log)
	pipeline := ingest.New(ingest.Config{
		SilenceThreshold: cfg.Ingest.SilenceThreshold,
		SampleRate:       cfg.Ingest.SampleRate,
		MaxChunkBytes:    cfg.Ingest.MaxChunkBytes,
	}, sessions, stt, log,
		ingest.WithPool(s.pool),
		ingest.WithPublisher(s.publisher),
		ingest.WithMetrics(metrics),
	)

	analyzer := analysis.New(analysis.Config{SentimentBatchSize: cfg.Meeting.SentimentBatchSize}, sessions, llm, log,
		analysis.WithPublisher(s.publisher),
		analysis.WithMetrics(metrics),
	)
	answerer := query.New(query.Config{TopK: cfg.Meeting.QueryTopK}, sessions, llm, log,
		query.WithMetrics(metrics),
	)

	h := handler.New(handler.Config{
		JWTSecret:     cfg.JWTSecret,
		MaxChunkBytes: cfg.Ingest.MaxChunkBytes,
	}, usecase.New(sessions, pipeline, analyzer, answerer), log)

	s.router = s.newRouter(h, registry)

	log.Info("meet server instance created successfully")
	return s, nil
}

func (s *Server) newTranscriber(metrics *observability.Metrics) (provider.Transcriber, error) {
	cfg := s.cfg.STT

	var stt provider.Transcriber
	switch cfg.Provider {
	case "openai":
		stt = provider.NewOpenAI(openai.New(openai.Config{
			APIKey:             s.cfg.OpenAIAPIKey,
			TranscriptionModel: cfg.Model,
		}))
	case "grpc":
		client, err := asrClient.New(cfg.ASRAddress, s.cfg.Ingest.MaxChunkBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to create asr client: %w", err)
		}
		s.closers = append(s.closers, client)
		stt = client
	case "mock":
		stt = provider.MockTranscriber{}
	default:
		return nil, fmt.Errorf("unknown stt provider %q", cfg.Provider)
	}

	s.log.Info("speech-to-text provider configured", slog.String("provider", cfg.Provider))
	return provider.InstrumentTranscriber(stt, cfg.Provider, cfg.Timeout, metrics), nil
}

func (s *Server) newGenerator(metrics *observability.Metrics) (provider.Generator, error) {
	cfg := s.cfg.LLM

	var llm provider.Generator
	switch cfg.Provider {
	case "openai", "ollama":
		llm = provider.NewOpenAI(openai.New(openai.Config{
			APIKey:      s.cfg.OpenAIAPIKey,
			BaseURL:     cfg.BaseURL,
			Ollama:      cfg.Provider == "ollama",
			ChatModel:   cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			JSONMode:    true,
		}))
	case "mock":
		llm = provider.MockGenerator{}
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	s.log.Info("language model provider configured",
		slog.String("provider", cfg.Provider),
		slog.String("model", cfg.Model),
	)
	return provider.InstrumentGenerator(llm, cfg.Provider, cfg.Timeout, metrics), nil
}

func (s *Server) newStorage(ctx context.Context) (storage.Storage, error) {
	if s.cfg.Postgres.DSN == "" {
		s.log.Info("using in-memory meeting registry")
		return storage.New(), nil
	}

	store, err := storage.NewPostgres(ctx, s.cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	s.log.Info("using postgres meeting registry")
	return store, nil
}

func (s *Server) newSinks(ctx context.Context) ([]events.Publisher, error) {
	var sinks []events.Publisher

	if s.cfg.Redis.Addr != "" {
		pub, err := events.NewRedisPublisherFromConfig(ctx, events.RedisConfig{
			Addr:          s.cfg.Redis.Addr,
			Password:      s.cfg.Redis.Password,
			DB:            s.cfg.Redis.DB,
			ChannelPrefix: s.cfg.Redis.ChannelPrefix,
		}, s.log)
		if err != nil {
			return nil, err
		}
		s.log.Info("redis event publisher enabled", slog.String("addr", s.cfg.Redis.Addr))
		sinks = append(sinks, pub)
	}

	if s.cfg.Webhook.URL != "" {
		sinks = append(sinks, webhookClient.New(s.cfg.Webhook.URL, s.cfg.Webhook.Token, s.cfg.Webhook.Timeout, s.log))
		s.log.Info("webhook event publisher enabled", slog.String("url", s.cfg.Webhook.URL))
	}

	return sinks, nil
}

func (s *Server) newRouter(h *handler.Handler, registry *prometheus.Registry) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(handler.RequestLogger(s.log))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-None-Match", "X-Speaker"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if s.cfg.RequestTimeout > 0 {
		router.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	h.RegisterRoutes(router)
	return router
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.log.Info("meet gateway started", slog.String("address", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		s.log.Error("server error received", slog.String("error", err.Error()))
		s.Close(context.Background())
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.log.Info("start shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.log.Info("shutting down HTTP server gracefully")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("graceful shutdown failed", slog.String("error", err.Error()))
		s.log.Warn("forcing server close")
		srv.Close()
		s.Close(shutdownCtx)
		return fmt.Errorf("failed to gracefully shutdown server: %w", err)
	}

	s.Close(shutdownCtx)
	s.log.Info("server stopped cleanly")
	return nil
}

// Close drains queued transcriptions and flushes events before closing the
// registry. The idle monitor is closed as one of the publishers.
func (s *Server) Close(ctx context.Context) {
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.log.Warn("ingest pool did not drain", slog.String("error", err.Error()))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.log.Warn("failed to close event publishers", slog.String("error", err.Error()))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Warn("failed to close storage", slog.String("error", err.Error()))
		}
	}
	s.closeAll()
}

func (s *Server) closeAll() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.log.Warn("failed to close client", slog.String("error", err.Error()))
		}
	}
	s.closers = nil
}
