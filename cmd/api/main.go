package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moracollect-api/internal/cache"
	"moracollect-api/internal/config"
	"moracollect-api/internal/docstore"
	"moracollect-api/internal/gcp"
	"moracollect-api/internal/handlers"
	"moracollect-api/internal/http"
	"moracollect-api/internal/identity"
	"moracollect-api/internal/observability"
	"moracollect-api/internal/service"
	"moracollect-api/internal/storage"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// Backend of the MoraCollect voice collection app. Contributors upload short
// recordings against prompts; the API registers them and keeps the
// per-prompt, per-script and per-user statistics consistent.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: MoraCollect API
//   version: 1.0.0
// schemes:
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json
// securityDefinitions:
//   bearer:
//     type: apiKey
//     name: Authorization
//     in: header

const (
	version         = "1.0.0"
	shutdownTimeout = 15 * time.Second
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.OTelEnabled,
		ServiceName: "moracollect-api",
		Version:     version,
		ProjectID:   cfg.ProjectID,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("Tracer shutdown failed", "error", err)
		}
	}()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}
	defer func() {
		_ = closeStore.Close()
	}()

	bucket, err := gcp.NewBucket(ctx, cfg.Bucket)
	if err != nil {
		log.Fatalf("Failed to open bucket: %v", err)
	}
	defer func() {
		_ = bucket.Close()
	}()
	slog.Info("Bucket ready", "bucket", cfg.Bucket)

	verifier, err := identity.NewVerifier(&nethttp.Client{Timeout: 10 * time.Second}, cfg.ProjectID, cfg.JWKSURL)
	if err != nil {
		log.Fatalf("Failed to create token verifier: %v", err)
	}

	var leaderboardCache service.LeaderboardCache
	if cfg.RedisAddr != "" && cfg.LeaderboardCacheTTL > 0 {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			// The cache is optional; run without it rather than refuse to start.
			slog.Warn("Redis unavailable, leaderboard cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer func() {
				_ = rdb.Close()
			}()
			leaderboardCache = cache.NewLeaderboard(rdb, cfg.LeaderboardCacheTTL)
			slog.Info("Leaderboard cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.LeaderboardCacheTTL)
		}
	}

	limits := service.Limits{
		UploadURLTTL:   cfg.UploadURLTTL,
		DownloadURLTTL: cfg.DownloadURLTTL,
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxAvatarBytes: cfg.MaxAvatarBytes,
	}

	docs, err := handlers.NewDocsHandler()
	if err != nil {
		log.Fatalf("Failed to render API docs: %v", err)
	}

	// Create router with dependencies
	deps := &http.Deps{
		Records:        service.NewRecordService(store, bucket, limits),
		Catalog:        service.NewCatalogService(store),
		Leaderboard:    service.NewLeaderboardService(store, bucket, leaderboardCache, limits),
		Profiles:       service.NewProfileService(store, bucket, limits),
		Verifier:       verifier,
		Docs:           docs,
		ProjectID:      cfg.ProjectID,
		AllowedOrigins: cfg.AllowedOrigins,
	}
	router := http.NewRouter(deps)

	server := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           observability.HTTPHandler(router, "moracollect-api"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", server.Addr, "project_id", cfg.ProjectID, "backend", cfg.DocstoreBackend)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}
}

// openStore opens the configured document store backend.
func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, io.Closer, error) {
	switch cfg.DocstoreBackend {
	case config.BackendFirestore:
		fs, err := gcp.NewFirestoreStore(ctx, cfg.ProjectID)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Firestore initialized", "project_id", cfg.ProjectID)
		return fs, fs, nil
	case config.BackendSQLite:
		db, err := storage.New(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		if err := storage.Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("Database initialized", "path", cfg.DBPath)
		ds := storage.NewDocumentStore(db)
		return ds, ds, nil
	default:
		return nil, nil, fmt.Errorf("unknown document store backend %q", cfg.DocstoreBackend)
	}
}
