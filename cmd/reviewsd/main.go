// reviewsd serves grounded answers about pet-service businesses from an
// embedded review index.
//
// Configuration is read from app_config.yaml and prompt_config.yaml (paths
// overridable via CONFIG_PATH and PROMPT_CONFIG_PATH). API keys never live
// in the YAML: the key names which environment variable to read, and a .env
// file next to the binary is loaded when present.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ricardo-yos/rag-petmarket-reviews/common/environment"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/config"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/engine"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/httpapi"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/index"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/llm"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/memory"
	"github.com/ricardo-yos/rag-petmarket-reviews/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "reviewsd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Missing .env is normal in containerized deployments.
	_ = godotenv.Load()

	cfg, err := config.Load(environment.StringOr("CONFIG_PATH", "configs/app_config.yaml"))
	if err != nil {
		return err
	}
	prompts, err := config.LoadPrompt(environment.StringOr("PROMPT_CONFIG_PATH", "configs/prompt_config.yaml"))
	if err != nil {
		return err
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	logger := slog.Default()
	logger.Info("starting reviewsd",
		"model", cfg.LLM.Model,
		"strategy", string(cfg.Strategy),
		"bind_addr", cfg.Server.BindAddr)

	store, err := index.Open(cfg.Storage.IndexPath)
	if err != nil {
		return fmt.Errorf("open review index: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if n, err := store.Count(ctx); err != nil {
		return fmt.Errorf("read review index: %w", err)
	} else if n == 0 {
		logger.Warn("review index is empty, every answer will be a decline",
			"path", cfg.Storage.IndexPath)
	} else {
		logger.Info("review index loaded", "chunks", n, "path", cfg.Storage.IndexPath)
	}

	embedder := index.NewOpenAIEmbedder(index.EmbedderConfig{
		APIKey:  os.Getenv(cfg.Embedding.APIKeyEnv),
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
		Timeout: cfg.EmbeddingTimeout(),
	})
	retriever := index.NewRetriever(store, embedder, logger)

	client := llm.New(llm.Config{
		APIKey:  os.Getenv(cfg.LLM.APIKeyEnv),
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLMTimeout(),
	})

	databaseURL := environment.StringOr("DATABASE_URL", cfg.Storage.DatabaseURL)
	turns, err := memory.NewTurnStore(ctx, databaseURL, cfg.Storage.HistoryPath)
	if err != nil {
		return fmt.Errorf("open turn store: %w", err)
	}
	defer turns.Close()

	metrics := observability.NewMetrics(cfg.Server.MetricsNamespace)
	eng := engine.New(cfg, prompts, retriever, client, turns, metrics, logger)
	api := httpapi.New(eng, metrics, logger)

	srv := &http.Server{
		Addr:              cfg.Server.BindAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
