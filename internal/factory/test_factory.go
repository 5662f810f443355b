package factory

import (
	"io"
	"log/slog"
	"time"

	"github.com/croftja/parley/internal/api"
	"github.com/croftja/parley/internal/bot"
	"github.com/croftja/parley/internal/chat"
	"github.com/croftja/parley/internal/dependencies/mocks"
	"github.com/croftja/parley/internal/storage/memory"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
}

// NewTestApp creates an App configured for testing with mocked
// dependencies. The chat listener binds an ephemeral port and the
// weather announcer stays disabled.
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	chatCfg := chat.DefaultServerConfig()
	chatCfg.Port = 0
	chatCfg.ShutdownTimeout = 2 * time.Second

	app := newWithDependencies(store, mockClock, chatCfg, api.DefaultServerConfig(), bot.DefaultWeatherConfig(), logger)

	return &TestApp{
		App:       app,
		MockClock: mockClock,
	}
}
