package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/filflo/brain/internal/brain"
	"github.com/filflo/brain/internal/config"
	"github.com/filflo/brain/internal/conversation"
	"github.com/filflo/brain/internal/httpapi"
	"github.com/filflo/brain/internal/llm"
	"github.com/filflo/brain/internal/logging"
	"github.com/filflo/brain/internal/observability"
	"github.com/filflo/brain/internal/warehouse"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("production")
		fallback.Fatal().Err(err).Msg("config error")
	}

	log := logging.New(cfg.Environment)
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()

	pool, err := warehouse.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("warehouse connection failed")
	}
	defer pool.Close()

	queryLog, err := warehouse.NewQueryLog(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("query log init failed")
	}

	store, err := conversation.NewStore(ctx, cfg.RedisURL, cfg.MaxExchanges)
	if err != nil {
		log.Fatal().Err(err).Msg("conversation store init failed")
	}
	defer store.Close()

	if mem, ok := store.(*conversation.InMemoryStore); ok {
		mem.SetChangeHook(func(active int) {
			metrics.ActiveConversations.Set(float64(active))
		})
		log.Info().Msg("conversation store: in-memory")
	} else {
		log.Info().Msg("conversation store: redis")
	}

	client, err := llm.NewClient(llm.Config{
		Mode:   cfg.BrainMode,
		APIKey: cfg.AnthropicAPIKey,
		Model:  cfg.BrainModel,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("llm client init failed")
	}

	schema := brain.DefaultSchemaContext()
	generator := brain.NewGenerator(client, schema, cfg.HistoryWindow, cfg.ResetOnGreeting)
	formatter := brain.NewFormatter(client, schema, cfg.ResultPreviewRows, cfg.HistoryWindow, log)
	service := brain.NewService(generator, formatter, store, pool, queryLog, metrics, log)

	api := httpapi.New(cfg, service, store, pool, queryLog, log)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Info().Str("addr", cfg.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	log.Info().Msg("shutdown complete")
}
