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

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"subgen/internal/auth"
	"subgen/internal/config"
	"subgen/internal/domain"
	"subgen/internal/generate"
	"subgen/internal/handlers"
	"subgen/internal/media"
	"subgen/internal/store"
	"subgen/internal/transcribe"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var opts []option.ClientOption
	if cfg.GoogleCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
	}
	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, opts...)
	if err != nil {
		logger.Error("firebase init failed", "error", err)
		os.Exit(1)
	}
	authClient, err := fbApp.Auth(ctx)
	if err != nil {
		logger.Error("firebase auth init failed", "error", err)
		os.Exit(1)
	}
	fsClient, err := fbApp.Firestore(ctx)
	if err != nil {
		logger.Error("firestore init failed", "error", err)
		os.Exit(1)
	}
	defer fsClient.Close()

	ffmpeg := media.NewFFmpeg(logger)
	managers := map[domain.SourceKind]media.Manager{
		domain.SourceYouTube: media.NewYouTubeManager(ffmpeg, logger),
		domain.SourceUpload:  media.NewUploadManager(ffmpeg, logger),
	}

	orch := generate.New(
		logger,
		store.NewFirestore(fsClient),
		managers,
		transcribe.NewWhisperAPI(cfg.WhisperAPIKey, cfg.WhisperModel, cfg.WhisperBaseURL),
		generate.Config{
			SecondsPerCredit:   cfg.SecondsPerCredit,
			MaxDurationSeconds: cfg.MaxDurationSeconds,
			StartingCredits:    cfg.StartingCredits,
			Workers:            cfg.Workers,
			QueueSize:          cfg.QueueSize,
			HistoryPageSize:    cfg.HistoryPageSize,
			Retention:          cfg.SubtitleRetention,
			TempDir:            cfg.TempDir,
		},
	)
	if err := orch.Start(ctx); err != nil {
		logger.Error("orchestrator start failed", "error", err)
		os.Exit(1)
	}
	orch.StartJanitor(ctx, cfg.JanitorInterval, cfg.JanitorTTL)

	app := handlers.NewApp(
		logger,
		auth.NewFirebaseVerifier(authClient, logger),
		orch,
		cfg.TempDir,
		cfg.MaxUploadBytes,
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server started", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		_ = srv.Close()
	}
	// Drain the pipeline only after the server stopped accepting work, so
	// already-accepted jobs finish instead of failing on every restart.
	orch.Stop()
	cancel()
	logger.Info("server stopped")
}
