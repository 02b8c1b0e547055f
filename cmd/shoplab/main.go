// Command shoplab runs the product evaluation API server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/shoplab-ai/shoplab/config"
	"github.com/shoplab-ai/shoplab/evaluation"
	"github.com/shoplab-ai/shoplab/pkg/logging"
	"github.com/shoplab-ai/shoplab/pkg/telemetry"
	"github.com/shoplab-ai/shoplab/provider"
	providerAnthropic "github.com/shoplab-ai/shoplab/provider/anthropic"
	providerOpenAI "github.com/shoplab-ai/shoplab/provider/openai"
	"github.com/shoplab-ai/shoplab/server"
	"github.com/shoplab-ai/shoplab/tool"
	"github.com/shoplab-ai/shoplab/tool/cache"
	"github.com/shoplab-ai/shoplab/tool/foodfacts"
	"github.com/shoplab-ai/shoplab/tool/search"
)

const (
	defaultPort        = 8000
	defaultMaxTokens   = 1000
	defaultTemperature = 0.7
	searchMaxResults   = 3
	cacheTTL           = time.Hour
)

func main() {
	// A missing .env file is fine; real deployments use the environment.
	_ = godotenv.Load()

	logger := logging.WithComponent("main")

	providerName := envOrDefault("SHOPLAB_PROVIDER", "openai")
	model := os.Getenv("SHOPLAB_MODEL")
	tavilyKey := os.Getenv("TAVILY_API_KEY")
	port := envInt("PORT", defaultPort)

	var apiKey string
	switch providerName {
	case "anthropic":
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if model == "" {
			model = providerAnthropic.DefaultConfig().Model
		}
	default:
		apiKey = os.Getenv("OPENAI_API_KEY")
		if model == "" {
			model = providerOpenAI.DefaultConfig().Model
		}
	}

	if err := config.ValidateProviderConfig(providerName, apiKey, model, defaultTemperature, defaultMaxTokens); err != nil {
		logger.Error("provider configuration invalid", "error", err)
		os.Exit(1)
	}
	if err := config.ValidateSearchConfig(tavilyKey, searchMaxResults); err != nil {
		logger.Error("search configuration invalid", "error", err)
		os.Exit(1)
	}
	if err := config.ValidateServerConfig(port); err != nil {
		logger.Error("server configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "shoplab",
		ServiceVersion: "1.0.0",
		Disable:        os.Getenv("SHOPLAB_TELEMETRY_DISABLE") != "",
	})
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}

	toolCache := buildToolCache(logger)

	registry := tool.NewRegistry()
	searchClient := search.New(&search.Config{
		APIKey:     tavilyKey,
		MaxResults: searchMaxResults,
		Cache:      toolCache,
	})
	foodfactsClient := foodfacts.New(&foodfacts.Config{Cache: toolCache})
	if err := registry.Register(searchClient.Tool()); err != nil {
		logger.Error("failed to register search tool", "error", err)
		os.Exit(1)
	}
	if err := registry.Register(foodfactsClient.Tool()); err != nil {
		logger.Error("failed to register ingredient tool", "error", err)
		os.Exit(1)
	}

	client := buildProvider(providerName, apiKey, model)
	coordinator := evaluation.New(client, registry)
	srv := server.New(coordinator, port)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	logger.Info("starting shoplab",
		"provider", providerName, "model", model, "port", port)
	if err := srv.Start(); err != nil {
		logger.Info("server stopped", "reason", err)
	}
}

func buildProvider(name, apiKey, model string) provider.Client {
	switch name {
	case "anthropic":
		cfg := providerAnthropic.DefaultConfig()
		cfg.APIKey = apiKey
		cfg.Model = model
		return providerAnthropic.New(cfg)
	default:
		cfg := providerOpenAI.DefaultConfig()
		cfg.APIKey = apiKey
		cfg.Model = model
		return providerOpenAI.New(cfg)
	}
}

// buildToolCache prefers Redis when REDIS_ADDR is set so replicas share
// search and ingredient lookups; otherwise results stay in-process.
func buildToolCache(logger *slog.Logger) cache.Cache {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return cache.NewMemory(cacheTTL)
	}

	db := envInt("REDIS_DB", 0)
	prefix := envOrDefault("REDIS_PREFIX", "shoplab:tools:")
	if err := config.ValidateRedisCacheConfig(addr, db, prefix); err != nil {
		logger.Error("redis cache configuration invalid", "error", err)
		os.Exit(1)
	}

	logger.Info("using redis tool cache", "addr", addr)
	return cache.NewRedis(&cache.RedisConfig{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		Prefix:   prefix,
		TTL:      cacheTTL,
	})
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
