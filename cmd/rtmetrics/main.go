package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/monti/rtmetrics/internal/api"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/auth"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/cache"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/config"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/esl"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/metrics"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/poller"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/publisher"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/storage"
	"github.com/dennisdiepolder/monti/rtmetrics/internal/websocket"
	"github.com/dennisdiepolder/monti/rtmetrics/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const serviceName = "rtmetrics"

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Str("esl_address", cfg.ESL.Address).
		Dur("poll_interval", cfg.PollInterval).
		Str("store_mode", string(cfg.Store.Mode)).
		Str("log_level", cfg.LogLevel).
		Msg("starting rtmetrics")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Publish targets
	store, err := storage.NewStore(ctx, cfg.Store, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize snapshot store")
	}
	defer store.Close()

	snapshots := cache.NewSnapshotCache()

	hub := websocket.NewHub(log.Logger)
	go hub.Run(ctx)

	notifiers := []publisher.Notifier{snapshots, hub}
	if cfg.KafkaEnabled() {
		stream := publisher.NewKafkaNotifier(cfg.Kafka, cfg.Keys, log.Logger)
		defer stream.Close()
		notifiers = append(notifiers, stream)
	}
	pub := publisher.New(store, cfg.Keys, log.Logger, notifiers...)

	// Switch poller
	client := esl.NewClient(cfg.ESL, log.Logger)
	defer client.Close()

	pollerService := poller.New(client, pub, poller.Config{
		Interval: cfg.PollInterval,
		Commands: poller.DefaultCommands(),
	}, log.Logger)

	pollerDone := make(chan struct{})
	go func() {
		pollerService.Start(ctx)
		close(pollerDone)
	}()

	// HTTP surface
	authenticator := auth.Disabled(log.Logger)
	if cfg.AuthEnabled {
		authenticator, err = auth.NewAuthenticator(cfg.OIDCIssuer, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize authentication")
		}
	} else {
		log.Warn().Msg("authentication disabled (AUTH_ENABLED=false)")
	}

	r := newRouter(cfg, routes{
		health:    api.NewHealthHandler(serviceName, pollerService, client, snapshots),
		snapshots: api.NewSnapshotHandler(snapshots, store, cfg.Keys, log.Logger),
		ws:        websocket.NewHandler(hub, cfg, log.Logger),
		auth:      authenticator,
		metrics:   metrics.Get().Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	// Stop polling; an in-flight read is interrupted
	cancel()
	<-pollerDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// routes holds the handlers mounted by newRouter
type routes struct {
	health    http.Handler
	snapshots *api.SnapshotHandler
	ws        http.Handler
	auth      *auth.Authenticator
	metrics   http.HandlerFunc
}

func newRouter(cfg *config.Config, h routes) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Public routes
	r.Method(http.MethodGet, "/health", h.health)
	r.Get("/metrics", h.metrics)

	// Dashboard routes
	r.Group(func(r chi.Router) {
		r.Use(h.auth.Middleware)
		r.Get("/api/snapshot/queues", h.snapshots.HandleQueues)
		r.Get("/api/snapshot/agents", h.snapshots.HandleAgents)
		r.Method(http.MethodGet, "/ws", h.ws)
	})

	return r
}
