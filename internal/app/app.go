// Package app wires configuration, adapters and feature handlers into a
// runnable HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"docforge/features/contextfiles"
	"docforge/features/ingest"
	"docforge/features/retrieve"
	"docforge/features/stats"
	"docforge/internal/adapter/gemini"
	"docforge/internal/config"
	"docforge/internal/contextstore"
	"docforge/internal/embed"
	"docforge/internal/extract"
	"docforge/internal/job"
	"docforge/internal/middleware"
	"docforge/internal/retrieval"
)

type App struct {
	Handler http.Handler
	port    int

	registry *job.Registry
	cache    *embed.Cache
}

func New(cfg *config.Config) (*App, error) {
	// Adapters
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	cache, err := embed.NewCache(cfg.CacheCapacity, time.Duration(cfg.CacheTTLSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	registry := job.NewRegistry(time.Duration(cfg.JobGraceSeconds) * time.Second)
	store := contextstore.NewStore(cfg.ContextDir)

	// Extraction chain
	ocr := extract.NewOCRExtractor(cfg.OCRDPI, cfg.OCRWorkers, cfg.CancelCheckStride, registry)
	coordinator := extract.NewCoordinator(extract.NewStructuredExtractor(), ocr, registry)

	// Feature: Ingest
	ingestService := ingest.NewService(coordinator, embedder, store)
	ingestHandler := ingest.NewHandler(ingestService, registry,
		cfg.MaxUploadSizeMB<<20, int64(cfg.StreamThresholdMB)<<20)

	// Feature: Retrieve
	queryLogger := retrieval.NewQueryLogger(cfg.QueryLogPath)
	engine := retrieval.NewEngine(embedder)
	retrieveService := retrieve.NewService(engine, embedder, cache, queryLogger)
	retrieveHandler := retrieve.NewHandler(retrieveService)

	// Feature: Context files
	contextHandler := contextfiles.NewHandler(store)

	// Feature: Stats
	statsHandler := stats.NewHandler(registry, cache, store)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /documents", middleware.CorrelationID(enableCORS(ingestHandler.Upload)))
	mux.Handle("POST /jobs/{id}/cancel", middleware.CorrelationID(enableCORS(ingestHandler.Cancel)))

	mux.Handle("POST /retrieve", middleware.CorrelationID(enableCORS(retrieveHandler.Retrieve)))

	mux.Handle("GET /context-files", middleware.CorrelationID(enableCORS(contextHandler.List)))
	mux.Handle("DELETE /context-files", middleware.CorrelationID(enableCORS(contextHandler.Delete)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:  mux,
		port:     cfg.ServerPort,
		registry: registry,
		cache:    cache,
	}, nil
}

func newEmbedder(cfg *config.Config) (embed.Client, error) {
	switch cfg.EmbeddingsProvider {
	case "gemini":
		embedder, err := gemini.NewEmbedder(context.Background(), cfg.GeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini embedder: %w", err)
		}
		return embedder, nil
	default:
		return embed.NewOpenAIClient(cfg.EmbeddingsURL, cfg.EmbeddingsModel), nil
	}
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
		a.registry.Close()
		a.cache.Close()
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
