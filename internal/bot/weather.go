// Package bot contains server-side announcer bots. The only one so far
// is the weather announcer, which periodically fetches a weather report
// and broadcasts a one-line summary to the chat.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/croftja/parley/internal/dependencies/clock"
	"github.com/croftja/parley/internal/model"
)

const weatherAnnouncerName = "Weather-announcer"

// Broadcaster fans a message out to every active chat session.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg *model.Message)
}

// WeatherConfig holds configuration for the weather announcer
type WeatherConfig struct {
	// URL is the full report endpoint, including any credentials and the
	// metric-units parameter. An empty URL disables the bot.
	URL string

	// City names the location in the broadcast line; the endpoint decides
	// the actual location queried.
	City string

	Interval       time.Duration
	RequestTimeout time.Duration
}

// DefaultWeatherConfig returns sensible defaults for the weather announcer
func DefaultWeatherConfig() WeatherConfig {
	return WeatherConfig{
		City:           "Stockholm",
		Interval:       5 * time.Minute,
		RequestTimeout: 10 * time.Second,
	}
}

// weatherReport is the subset of the openweathermap response we read.
type weatherReport struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
}

// Weather polls a weather endpoint and broadcasts a summary line on a
// fixed cadence.
type Weather struct {
	cfg         WeatherConfig
	broadcaster Broadcaster
	clock       clock.Clock
	client      *http.Client
	logger      *slog.Logger
}

// NewWeather creates the weather announcer
func NewWeather(cfg WeatherConfig, broadcaster Broadcaster, clk clock.Clock, logger *slog.Logger) *Weather {
	return &Weather{
		cfg:         cfg,
		broadcaster: broadcaster,
		clock:       clk,
		client:      &http.Client{Timeout: cfg.RequestTimeout},
		logger:      logger.With(slog.String("component", "weather")),
	}
}

// Run announces immediately, then on every interval tick, until the
// context is cancelled. It returns without doing anything when no URL is
// configured.
func (w *Weather) Run(ctx context.Context) {
	if w.cfg.URL == "" {
		w.logger.Info("weather announcer disabled, no URL configured")
		return
	}

	w.announce(ctx)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.announce(ctx)
		}
	}
}

// announce fetches one report and broadcasts it. Failures are logged and
// swallowed; the next tick tries again.
func (w *Weather) announce(ctx context.Context) {
	report, err := w.fetch(ctx)
	if err != nil {
		w.logger.Warn("weather fetch failed", slog.Any("error", err))
		return
	}
	if len(report.Weather) == 0 {
		w.logger.Warn("weather report had no conditions")
		return
	}

	w.logger.Debug("weather fetched",
		slog.String("main", report.Weather[0].Main),
		slog.Float64("temp", report.Main.Temp))

	line := fmt.Sprintf("%s suffers from %s, at a temperature of %sC.",
		w.cfg.City,
		report.Weather[0].Description,
		strconv.FormatFloat(report.Main.Temp, 'f', -1, 64))

	w.broadcaster.Broadcast(ctx, model.NewMessage(line, weatherAnnouncerName, w.clock.Now()))
}

func (w *Weather) fetch(ctx context.Context) (*weatherReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	var report weatherReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &report, nil
}
