package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/assets"
	"server/internal/credits"
	"server/internal/infra"
	"server/internal/providers"
	"server/internal/providers/fal"
	"server/internal/providers/gemini"
	"server/internal/providers/seedream"
	"server/internal/storage"
	"server/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	jobs := repo.NewJobRepository(pool)
	projects := repo.NewProjectRepository(pool)
	prompts := repo.NewPromptRepository(pool)
	renders := repo.NewRenderRepository(pool)
	users := repo.NewUserRepository(pool)
	audit := repo.NewAuditRepository(pool)
	assetRepo := repo.NewAssetRepository(pool)

	registry, err := buildRegistry(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure providers")
	}

	orchestrator := worker.New(worker.Options{
		Jobs:            jobs,
		Projects:        projects,
		Prompts:         prompts,
		Renders:         renders,
		Ledger:          credits.NewLedger(users, audit, logger),
		Resolver:        assets.NewResolver(assetRepo, fileStore),
		Registry:        registry,
		RenderStore:     fileStore,
		ProviderTimeout: cfg.ProviderTimeout,
		Logger:          logger,
	})

	workerPool := worker.NewPool(worker.PoolOptions{
		Jobs:         jobs,
		Orchestrator: orchestrator,
		Workers:      cfg.WorkerCount,
		PollInterval: cfg.JobPollInterval,
		Logger:       logger,
	})

	httpServer := infra.NewHTTPServer(cfg, healthRouter(pool))
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("worker: health endpoint listening")
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("worker: health endpoint stopped")
		}
	}()

	if err := workerPool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("worker: health endpoint shutdown failed")
	}
	logger.Info().Msg("worker: stopped")
}

// buildRegistry wires every model identifier jobs may carry to a provider
// adapter. Clients with missing API keys are still registered; they fail per
// call, which reaches the refund path instead of crashing the process.
func buildRegistry(cfg *infra.Config, logger *infra.Logger) (*providers.Registry, error) {
	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}

	flash, err := gemini.NewClient(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      gemini.ModelFlash,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	pro, err := gemini.NewClient(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      gemini.ModelPro,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	ark, err := seedream.NewClient(seedream.Options{
		APIKey:     cfg.ArkAPIKey,
		BaseURL:    cfg.ArkBaseURL,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	flux, err := fal.NewClient(fal.Options{
		APIKey:     cfg.FalAPIKey,
		BaseURL:    cfg.FalBaseURL,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	registry := providers.NewRegistry()
	registry.Register(providers.ModelNanoBanana, flash)
	registry.Register(providers.ModelGeminiFlash, flash)
	registry.Register(providers.ModelNanoBananaPro, pro)
	registry.Register(providers.ModelGeminiPro, pro)
	registry.Register(providers.ModelSeedream, ark)
	registry.Register(providers.ModelFlux, flux)
	return registry, nil
}

func healthRouter(pool interface {
	Ping(ctx context.Context) error
}) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return r
}
