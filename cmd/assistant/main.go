// Assistant service main entry point
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dashboards-assistant/internal/agentclient"
	"github.com/dashboards-assistant/internal/assistant"
	"github.com/dashboards-assistant/internal/config"
	"github.com/dashboards-assistant/internal/detector"
	"github.com/dashboards-assistant/internal/events"
	"github.com/dashboards-assistant/internal/searchclient"
	"github.com/dashboards-assistant/internal/server"
	"github.com/dashboards-assistant/internal/visualization"
)

func main() {
	configPath := flag.String("config", os.Getenv("ASSISTANT_CONFIG"), "path to YAML config file")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting dashboards assistant service")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	var (
		detectionRedis detector.RedisCommands
		storeRedis     visualization.RedisHashes
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		detectionRedis = redisClient
		storeRedis = redisClient
		logger.Info("Shared cache enabled", zap.String("redis", cfg.RedisAddr))
	}

	search, err := searchclient.NewRegistry(cfg.SearchEndpoints, logger)
	if err != nil {
		logger.Fatal("Failed to build search clients", zap.Error(err))
	}
	agents := agentclient.New(agentclient.Config{BaseURL: cfg.AgentBaseURL}, logger)

	cache, err := detector.NewCache(cfg.DetectionCacheSize, detectionRedis, logger)
	if err != nil {
		logger.Fatal("Failed to create detection cache", zap.Error(err))
	}
	det := detector.New(search, agents, cfg.Agents.IndexTypeDetect, cache, logger)

	builder := visualization.NewBuilder(search, agents, cfg.Agents.Visualization, det, logger)
	store := visualization.NewStore(storeRedis, logger)

	classifier := assistant.NewIntentClassifier(agents, cfg.Agents.IntentClassify, logger)
	svc, err := assistant.NewService(agents, assistant.AgentNames{
		Summary: cfg.Agents.Summary,
		Chat:    cfg.Agents.Chat,
	}, classifier, builder, cfg.AnswerCacheTTL.Std(), logger)
	if err != nil {
		logger.Fatal("Failed to create assistant service", zap.Error(err))
	}
	defer svc.Close()

	publisher, err := events.Connect(cfg.NATSURL, logger)
	if err != nil {
		logger.Fatal("Failed to connect telemetry publisher", zap.Error(err))
	}
	defer publisher.Close()

	api := server.New(search, det, svc, builder, store, publisher, logger)

	router := mux.NewRouter()
	api.SetupRoutes(router)

	jwtMiddleware := server.NewJWTMiddleware(cfg.JWTSecret, logger)
	corsChain := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      corsChain(jwtMiddleware.Middleware(router)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("HTTP server starting", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	httpServer.Shutdown(ctx)
	cache.Clear()

	logger.Info("Shutdown complete")
}
