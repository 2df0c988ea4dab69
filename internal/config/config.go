// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"lead_bot/internal/model"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	AdminID          int64
	DatabasePath     string
	LogLevel         string

	// Seeds for the settings table, applied on first start only.
	DefaultPollInterval time.Duration
	DefaultMinScore     int
	DefaultMaxResults   int

	FetchTimeout   time.Duration
	FetchAttempts  int
	FetchBatchSize int
}

// LoadDotEnv copies variables from a .env style file into the process
// environment without overriding values that are already set. A missing file
// is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	rawAdmin := strings.TrimSpace(os.Getenv("ADMIN_TELEGRAM_ID"))
	if rawAdmin == "" {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is required")
	}
	adminID, err := strconv.ParseInt(rawAdmin, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID %q: %w", rawAdmin, err)
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/bot.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	pollSeconds, err := envInt("DEFAULT_POLL_INTERVAL_SECONDS", 60, 1, math.MaxInt32)
	if err != nil {
		return nil, err
	}
	minScore, err := envInt("DEFAULT_MIN_SCORE", 60, 0, 100)
	if err != nil {
		return nil, err
	}
	maxResults, err := envInt("DEFAULT_MAX_RESULTS_PER_CYCLE", 10, 1, math.MaxInt32)
	if err != nil {
		return nil, err
	}
	timeoutSeconds, err := envInt("FETCH_TIMEOUT_SECONDS", 20, 1, 600)
	if err != nil {
		return nil, err
	}
	attempts, err := envInt("FETCH_ATTEMPTS", 3, 1, 10)
	if err != nil {
		return nil, err
	}
	batchSize, err := envInt("FETCH_BATCH_SIZE", 50, 1, 1000)
	if err != nil {
		return nil, err
	}

	return &Config{
		TelegramBotToken:    token,
		AdminID:             adminID,
		DatabasePath:        dbPath,
		LogLevel:            logLevel,
		DefaultPollInterval: time.Duration(pollSeconds) * time.Second,
		DefaultMinScore:     minScore,
		DefaultMaxResults:   maxResults,
		FetchTimeout:        time.Duration(timeoutSeconds) * time.Second,
		FetchAttempts:       attempts,
		FetchBatchSize:      batchSize,
	}, nil
}

// IsAdmin reports whether userID is the operator.
func (c *Config) IsAdmin(userID int64) bool {
	return c.AdminID != 0 && userID == c.AdminID
}

// DefaultSettings returns the settings written on first start.
func (c *Config) DefaultSettings() model.Settings {
	return model.Settings{
		MonitoringEnabled:  false,
		PollInterval:       c.DefaultPollInterval,
		MinScore:           c.DefaultMinScore,
		MaxResultsPerCycle: c.DefaultMaxResults,
		LangFilter:         model.LangBoth,
		Target:             model.DeliveryTarget{Kind: model.TargetAdmin},
	}
}

func envInt(key string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be between %d and %d, got %d", key, lo, hi, v)
	}
	return v, nil
}
