package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the warehouse brain service.
type Config struct {
	BindAddr         string
	Environment      string
	ShutdownTimeout  time.Duration
	RequestTimeout   time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool
	AllowedOrigins []string

	DatabaseURL string
	RedisURL    string

	BrainMode       string
	AnthropicAPIKey string
	BrainModel      string

	MaxExchanges      int
	HistoryWindow     int
	ResultPreviewRows int
	ResetOnGreeting   bool

	GeneralRateLimit  int
	GeneralRateWindow time.Duration
	QueryRateLimit    int
	QueryRateWindow   time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":5001"),
		Environment:      envOrDefault("APP_ENV", "development"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "brain"),
		AllowedOrigins: splitCSV(envOrDefault("APP_ALLOWED_ORIGINS",
			"http://localhost:3000,http://localhost:3001")),
		DatabaseURL:     trimmedEnv("DATABASE_URL"),
		RedisURL:        trimmedEnv("REDIS_URL"),
		BrainMode:       envOrDefault("BRAIN_MODE", "auto"),
		AnthropicAPIKey: trimmedEnv("ANTHROPIC_API_KEY"),
		BrainModel:      envOrDefault("BRAIN_MODEL", "claude-3-5-sonnet-20241022"),
		// 10 exchanges keeps 20 turns of context per user.
		MaxExchanges:      10,
		HistoryWindow:     6,
		ResultPreviewRows: 10,
		ResetOnGreeting:   true,
		GeneralRateLimit:  100,
		GeneralRateWindow: 15 * time.Minute,
		QueryRateLimit:    20,
		QueryRateWindow:   time.Minute,
		ShutdownTimeout:   15 * time.Second,
		RequestTimeout:    90 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RequestTimeout, err = durationFromEnv("APP_REQUEST_TIMEOUT", cfg.RequestTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.ResetOnGreeting, err = boolFromEnv("BRAIN_RESET_ON_GREETING", cfg.ResetOnGreeting)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxExchanges, err = intFromEnv("BRAIN_MAX_EXCHANGES", cfg.MaxExchanges)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryWindow, err = intFromEnv("BRAIN_HISTORY_WINDOW", cfg.HistoryWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.ResultPreviewRows, err = intFromEnv("BRAIN_RESULT_PREVIEW_ROWS", cfg.ResultPreviewRows)
	if err != nil {
		return Config{}, err
	}
	cfg.GeneralRateLimit, err = intFromEnv("APP_GENERAL_RATE_LIMIT", cfg.GeneralRateLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.GeneralRateWindow, err = durationFromEnv("APP_GENERAL_RATE_WINDOW", cfg.GeneralRateWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.QueryRateLimit, err = intFromEnv("APP_QUERY_RATE_LIMIT", cfg.QueryRateLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.QueryRateWindow, err = durationFromEnv("APP_QUERY_RATE_WINDOW", cfg.QueryRateWindow)
	if err != nil {
		return Config{}, err
	}

	if cfg.MaxExchanges <= 0 {
		return Config{}, fmt.Errorf("BRAIN_MAX_EXCHANGES must be positive")
	}
	if cfg.HistoryWindow <= 0 {
		return Config{}, fmt.Errorf("BRAIN_HISTORY_WINDOW must be positive")
	}
	if cfg.ResultPreviewRows <= 0 {
		return Config{}, fmt.Errorf("BRAIN_RESULT_PREVIEW_ROWS must be positive")
	}
	if cfg.GeneralRateLimit <= 0 || cfg.QueryRateLimit <= 0 {
		return Config{}, fmt.Errorf("rate limits must be positive")
	}
	switch strings.ToLower(cfg.BrainMode) {
	case "auto", "anthropic", "mock":
	default:
		return Config{}, fmt.Errorf("invalid BRAIN_MODE: %q (expected auto|anthropic|mock)", cfg.BrainMode)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
