package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/quern/askdata/internal/agents"
	"github.com/quern/askdata/internal/api"
	"github.com/quern/askdata/internal/cache"
	"github.com/quern/askdata/internal/config"
	"github.com/quern/askdata/internal/dbconn"
	"github.com/quern/askdata/internal/engine"
	"github.com/quern/askdata/internal/provider"
	"github.com/quern/askdata/internal/session"
	"github.com/quern/askdata/internal/sqlguard"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting askdata...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/askdata.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Initialize provider router
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Model: pc.Model,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}
	if !router.Configured() {
		logger.Info("no LLM providers configured, generation uses the rule path only")
	}

	// Answer cache: Redis when configured, in-memory otherwise
	var answers cache.Cache = cache.NewMemory(0)
	var redisCache *cache.Redis
	if cfg.Redis.URL != "" {
		rc, cacheErr := cache.NewRedis(cfg.Redis.URL, logger)
		if cacheErr != nil {
			logger.Warn("Redis unavailable, using in-memory cache", zap.Error(cacheErr))
		} else {
			answers = rc
			redisCache = rc
			logger.Info("Redis answer cache initialized")
		}
	}

	// Core wiring
	executor := sqlguard.NewExecutor(cfg.Limits.MaxRows, logger)
	sessions := session.NewStore(logger)
	connector := dbconn.New(executor, logger)
	pipeline := agents.NewPipeline(router, cfg.Limits.MaxIterations, logger)
	eng := engine.New(pipeline, sessions, executor, answers, logger)

	// Build HTTP handler
	handler := api.NewHandler(eng, sessions, connector, cfg.Limits, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("askdata listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down askdata...")
	ctx := context.Background()
	srv.Shutdown(ctx)
	if redisCache != nil {
		redisCache.Close()
	}
}
