package factory

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/croftja/parley/internal/api"
	"github.com/croftja/parley/internal/bot"
	"github.com/croftja/parley/internal/chat"
	"github.com/croftja/parley/internal/dependencies/clock"
	"github.com/croftja/parley/internal/services/auth"
	"github.com/croftja/parley/internal/storage"
	"github.com/croftja/parley/internal/storage/memory"
	redisstorage "github.com/croftja/parley/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock clock.Clock

	// Services
	AuthService *auth.Service
	Registry    *chat.Registry
	Router      *chat.Router
	ChatServer  *chat.Server
	Weather     *bot.Weather

	// Status API
	StatusRouter http.Handler
	StatusServer *api.Server
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// ChatConfig configures the chat listener (optional)
	// If zero value, defaults to chat.DefaultServerConfig()
	ChatConfig chat.ServerConfig
	// APIConfig configures the status API (optional)
	// If zero value, defaults to api.DefaultServerConfig()
	APIConfig api.ServerConfig
	// WeatherConfig configures the weather announcer (optional)
	// With no URL set the announcer stays disabled
	WeatherConfig bot.WeatherConfig
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	// Create external dependencies
	clk := clock.New()

	chatCfg := cfg.ChatConfig
	if chatCfg == (chat.ServerConfig{}) {
		chatCfg = chat.DefaultServerConfig()
	}
	apiCfg := cfg.APIConfig
	if apiCfg == (api.ServerConfig{}) {
		apiCfg = api.DefaultServerConfig()
	}

	return newWithDependencies(store, clk, chatCfg, apiCfg, cfg.WeatherConfig, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, chatCfg chat.ServerConfig, apiCfg api.ServerConfig, weatherCfg bot.WeatherConfig, logger *slog.Logger) *App {
	registry := chat.NewRegistry()
	router := chat.NewRouter(registry, store, logger)
	authService := auth.New(store, clk)
	chatServer := chat.NewServer(chatCfg, registry, router, authService, store, clk, logger)
	weather := bot.NewWeather(weatherCfg, router, clk, logger)

	statusRouter := api.NewRouter(api.RouterConfig{
		Logger:      logger,
		Sessions:    registry,
		Clock:       clk,
		MaxSessions: chatCfg.MaxSessions,
	})
	statusServer := api.NewServer(statusRouter, apiCfg, logger)

	return &App{
		Storage:      store,
		Clock:        clk,
		AuthService:  authService,
		Registry:     registry,
		Router:       router,
		ChatServer:   chatServer,
		Weather:      weather,
		StatusRouter: statusRouter,
		StatusServer: statusServer,
	}
}
