package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/api"
	"github.com/swing-coach/backend/internal/api/middleware"
	"github.com/swing-coach/backend/internal/coaching"
	"github.com/swing-coach/backend/internal/config"
	"github.com/swing-coach/backend/internal/db"
	"github.com/swing-coach/backend/internal/ffmpeg"
	"github.com/swing-coach/backend/internal/logger"
	"github.com/swing-coach/backend/internal/storage"
	"github.com/swing-coach/backend/internal/summarize"
	"github.com/swing-coach/backend/internal/transcribe"
)

func main() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "config.yaml"
	}
	configPath := flag.String("config", defaultPath, "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logr.Sync()

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.Database, logr)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	store, err := storage.New(ctx, cfg.Storage, cfg.PublicBaseURL, logr)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	transcriber, err := transcribe.NewFromConfig(ctx, cfg.Transcription, logr)
	if err != nil {
		return fmt.Errorf("init transcription: %w", err)
	}
	defer transcriber.Close()

	summarizer, err := summarize.NewFromConfig(cfg.Summarization, logr)
	if err != nil {
		return fmt.Errorf("init summarization: %w", err)
	}

	logr.Info("engines configured",
		zap.String("transcription", cfg.Transcription.Engine),
		zap.String("summarization", cfg.Summarization.Engine),
		zap.String("openai_key", logger.Redact(cfg.Transcription.OpenAIAPIKey)),
		zap.String("anthropic_key", logger.Redact(cfg.Summarization.AnthropicAPIKey)))

	svc := coaching.New(database, store,
		ffmpeg.NewEngine(cfg.FFmpeg, nil, logr),
		transcriber, summarizer,
		coaching.Options{
			ThumbnailTimeout: cfg.FFmpeg.ThumbnailTimeout,
			ThumbnailWait:    cfg.FFmpeg.ThumbnailWait,
			URLTTL:           cfg.Storage.URLTTL,
		}, logr)

	router := api.NewRouter(api.Deps{
		Config:   cfg,
		Coaching: svc,
		Database: database,
		Storage:  store,
		Limiter:  middleware.NewRateLimiter(ctx, cfg.AIRateLimit, cfg.AIRateWindow),
		Log:      logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("public_base_url", cfg.PublicBaseURL),
			zap.String("storage", store.Kind()),
			zap.String("database", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown", zap.Error(err))
	}
	if err := svc.Wait(shutdownCtx); err != nil {
		logr.Warn("pending thumbnails abandoned", zap.Error(err))
	}
	return nil
}
