package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"proctor-engine/internal/api"
	"proctor-engine/internal/config"
	"proctor-engine/internal/engine"
	"proctor-engine/internal/monitor"
	"proctor-engine/internal/signaling"
	"proctor-engine/internal/storage"
	"proctor-engine/internal/vision"
)

// writerSink feeds engine violation reports into the async persistence
// writer.
type writerSink struct {
	w *storage.ViolationWriter
}

func (s writerSink) Record(rep engine.ViolationReport) {
	s.w.Log(&storage.ViolationRecord{
		ID:           rep.ID,
		SessionID:    rep.SessionID,
		UserID:       rep.UserID,
		ExamID:       rep.ExamID,
		Types:        rep.Types,
		Descriptions: rep.Descriptions,
		FaceCount:    rep.FaceCount,
		SnapshotKey:  rep.SnapshotKey,
		CreatedAt:    rep.CreatedAt,
	})
}

func main() {
	// Structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	var cfg *config.Config
	var err error

	if _, statErr := os.Stat(configPath); statErr == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", configPath).Msg("failed to load config")
		}
	} else {
		log.Info().Msg("no config file found, using defaults")
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metrics
	metrics := monitor.NewMetrics()

	// Initialize database (optional — runs without it for development; the
	// engine keeps broadcasting violations live, durable logging is simply
	// disabled)
	var db *storage.DB
	if cfg.Database.DSN != "" {
		db, err = storage.New(ctx, cfg.Database.DSN)
		if err != nil {
			log.Warn().Err(err).Msg("database unavailable, violation persistence disabled")
		} else {
			defer db.Close()
			if err := db.EnsureSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("schema setup failed")
			}
		}
	}

	// Initialize async violation writer
	var sink engine.ViolationSink
	if db != nil {
		writer := storage.NewViolationWriter(db, 1000)
		writer.Start()
		defer writer.Flush(10 * time.Second)
		sink = writerSink{w: writer}
	}

	coordinator := engine.NewCoordinator(sink, metrics, func() string {
		return uuid.New().String()
	})

	// Vision pipeline. An unconfigured classifier endpoint means every
	// analysis fails open.
	if cfg.Classifier.Endpoint == "" {
		log.Warn().Msg("no classifier endpoint configured — snapshot analysis will fail open")
	}
	classifier := vision.NewHTTPClassifier(cfg.Classifier.Endpoint, cfg.Classifier.Timeout)
	analyzer := vision.NewAnalyzer(classifier, cfg.Classifier, metrics)

	snapshots, err := storage.NewSnapshotStore(cfg.Snapshots.Dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Snapshots.Dir).Msg("snapshot store unavailable")
	}

	gateway := signaling.NewGateway(coordinator, cfg.Signaling, metrics)
	handlers := api.NewHandlers(coordinator, analyzer, snapshots, db, metrics, cfg.Snapshots.MaxBytes)
	server := api.NewServer(cfg, handlers, gateway, db, classifier, metrics)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		log.Info().Str("signal", sig.String()).Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}

		cancel()
	}()

	log.Info().
		Str("addr", cfg.Address()).
		Bool("db_enabled", db != nil).
		Bool("classifier_configured", cfg.Classifier.Endpoint != "").
		Msg("server starting")

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}
