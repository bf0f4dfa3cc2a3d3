package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"signalTrackerBot/internal/adapters/logger"
)

// Config holds all application configuration.
type Config struct {
	// Telegram
	TelegramBotToken string

	// Binance (testnet switch only; follower keys live in the database)
	IsTestnet bool

	// Scheduler cadences
	TickInterval time.Duration
	BalanceEvery time.Duration
	PNLEvery     time.Duration

	// Mirror order validation floors
	MinNotional float64
	MinQuantity float64

	// Database
	DBPath string

	// Logging
	LogLevel logrus.Level
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	cfg.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	if cfg.TelegramBotToken == "" {
		errs = append(errs, "TELEGRAM_BOT_TOKEN must be set")
	}

	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	tickSeconds := getEnvAsInt("TICK_INTERVAL_SECONDS", 60)
	if tickSeconds <= 0 {
		errs = append(errs, "TICK_INTERVAL_SECONDS must be positive")
	}
	cfg.TickInterval = time.Duration(tickSeconds) * time.Second

	balanceMinutes := getEnvAsInt("BALANCE_REFRESH_MINUTES", 5)
	if balanceMinutes <= 0 {
		errs = append(errs, "BALANCE_REFRESH_MINUTES must be positive")
	}
	cfg.BalanceEvery = time.Duration(balanceMinutes) * time.Minute

	pnlMinutes := getEnvAsInt("PNL_REFRESH_MINUTES", 15)
	if pnlMinutes <= 0 {
		errs = append(errs, "PNL_REFRESH_MINUTES must be positive")
	}
	cfg.PNLEvery = time.Duration(pnlMinutes) * time.Minute

	cfg.MinNotional, err = getEnvAsFloatRequired("MIN_NOTIONAL", 5.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_NOTIONAL: %v", err))
	} else if cfg.MinNotional < 0 {
		errs = append(errs, "MIN_NOTIONAL cannot be negative")
	}

	cfg.MinQuantity, err = getEnvAsFloatRequired("MIN_QUANTITY", 0.001)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_QUANTITY: %v", err))
	} else if cfg.MinQuantity < 0 {
		errs = append(errs, "MIN_QUANTITY cannot be negative")
	}

	cfg.DBPath = getEnv("DB_PATH", "./data/signal_tracker.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	logLevelStr := getEnv("LOG_LEVEL", "info")
	cfg.LogLevel = logger.ParseLevel(logLevelStr)

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
