package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/croftja/parley/internal/chat"
	"github.com/croftja/parley/internal/factory"
	redisstorage "github.com/croftja/parley/internal/storage/redis"
)

func main() {
	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Build factory config from environment
	chatCfg := chat.DefaultServerConfig()
	if port, ok := envInt("PARLEY_PORT"); ok {
		chatCfg.Port = port
	}
	if max, ok := envInt("PARLEY_MAX_SESSIONS"); ok {
		chatCfg.MaxSessions = max
	}

	cfg := factory.Config{
		Logger:      logger,
		StorageType: os.Getenv("PARLEY_STORAGE_TYPE"),
		ChatConfig:  chatCfg,
	}

	cfg.WeatherConfig.URL = os.Getenv("PARLEY_WEATHER_URL")
	if city := os.Getenv("PARLEY_WEATHER_CITY"); city != "" {
		cfg.WeatherConfig.City = city
	}

	// Configure Redis if storage type is redis
	if cfg.StorageType == factory.StorageTypeRedis {
		redisURL := os.Getenv("PARLEY_REDIS_URL")
		if redisURL == "" {
			logger.Error("PARLEY_REDIS_URL required when PARLEY_STORAGE_TYPE=redis")
			os.Exit(1)
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = redisURL
		cfg.RedisConfig = &redisCfg
	}

	// Create application factory
	app, err := factory.New(cfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	// Start the chat listener, status API and weather announcer
	errCh := make(chan error, 2)
	go func() {
		errCh <- app.ChatServer.Start(ctx)
	}()
	go func() {
		errCh <- app.StatusServer.Start()
	}()
	go app.Weather.Run(ctx)

	logger.Info("server started", slog.String("status_addr", app.StatusServer.Addr()))

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		if err := app.ChatServer.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := app.StatusServer.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}

func envInt(key string) (int, bool) {
	val := os.Getenv(key)
	if val == "" {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("ignoring non-numeric environment value", slog.String("key", key))
		return 0, false
	}
	return n, true
}
