package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chatbridge/internal/agent"
	"chatbridge/internal/cache"
	"chatbridge/internal/chat"
	"chatbridge/internal/handlers"
	"chatbridge/internal/httpserver"
	"chatbridge/internal/metrics"
	"chatbridge/pkg/logging/logging"
)

type Config struct {
	Port          string
	CacheBackend  string // "memory" or "redis"
	CacheTTL      time.Duration
	CacheMax      int
	RedisAddr     string
	AgentBaseURL  string
	AgentAPIKey   string
	AgentTimeout  time.Duration
	RetrievalTool string
}

func LoadConfig() Config {
	return Config{
		Port:          getenv("PORT", "8080"),
		CacheBackend:  getenv("CACHE_BACKEND", "memory"),
		CacheTTL:      getenvDuration("CACHE_TTL", time.Hour),
		CacheMax:      getenvInt("CACHE_MAX_ENTRIES", 10000),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		AgentBaseURL:  getenv("AGENT_BASE_URL", "http://127.0.0.1:9090"),
		AgentAPIKey:   os.Getenv("AGENT_API_KEY"),
		AgentTimeout:  getenvDuration("AGENT_TIMEOUT", 60*time.Second),
		RetrievalTool: getenv("RETRIEVAL_TOOL", chat.DefaultRetrievalTool),
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("chatbridge exited with error: %v", err)
	}
}

func run() error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg := LoadConfig()

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.String("redis_addr", cfg.RedisAddr),
		zap.String("agent_base_url", cfg.AgentBaseURL),
		zap.String("retrieval_tool", cfg.RetrievalTool),
	)

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.CacheBackend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.RedisAddr),
		)
	}

	// ----- Query cache -----
	cacheCfg := cache.Config{
		Backend:    cfg.CacheBackend,
		TTL:        cfg.CacheTTL,
		MaxEntries: cfg.CacheMax,
		Prefix:     "chatbridge",
	}
	queryCache := cache.NewQueryCache(cacheCfg, redisClient)
	queryCache = cache.NewLoggingQueryCache(queryCache)

	// ----- Generators -----
	agents, err := agent.NewHTTPManager(agent.Config{
		BaseURL:       cfg.AgentBaseURL,
		APIKey:        cfg.AgentAPIKey,
		InvokeTimeout: cfg.AgentTimeout,
	}, logger)
	if err != nil {
		return err
	}

	// ----- Chat service -----
	chatService := chat.NewService(
		agents,
		chat.NewSessionStore(),
		queryCache,
		chat.Config{
			CacheTTL:      cfg.CacheTTL,
			RetrievalTool: cfg.RetrievalTool,
		},
	)

	// ----- Handlers -----
	chatHandler := handlers.NewChatHandler(chatService)
	sessionHandler := handlers.NewSessionHandler(chatService)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, chatHandler, sessionHandler)

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting chatbridge",
		zap.String("addr", srv.Addr),
		zap.String("cache_backend", cfg.CacheBackend),
	)

	// Start server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
