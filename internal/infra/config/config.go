package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	TelegramToken string
	DatabaseURL   string
	HTTPAddr      string
	WebAppURL     string // Telegram mini-app URL shown in bot keyboards
	LogLevel      string
	Environment   string
	DevMode       bool // relaxes CORS for local mini-app development

	CronSpecExpiryCheck string // sweep for hatms past their deadline
	CronSpecReminder    string // daily reminder about unread juzs
	ReminderWindowDays  int    // how close to the deadline reminders start
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.WebAppURL = os.Getenv("WEBAPP_URL")
	if cfg.WebAppURL == "" {
		cfg.WebAppURL = "http://localhost:5173"
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.DevMode = strings.ToLower(os.Getenv("DEV_MODE")) == "true"

	cfg.CronSpecExpiryCheck = os.Getenv("CRON_SPEC_EXPIRY_CHECK")
	if cfg.CronSpecExpiryCheck == "" {
		cfg.CronSpecExpiryCheck = "*/10 * * * *" // Default: every 10 minutes
	}

	cfg.CronSpecReminder = os.Getenv("CRON_SPEC_REMINDER")
	if cfg.CronSpecReminder == "" {
		cfg.CronSpecReminder = "0 9 * * *" // Default: 9 AM daily
	}

	cfg.ReminderWindowDays = 3
	if v := os.Getenv("REMINDER_WINDOW_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 1 {
			return nil, fmt.Errorf("invalid REMINDER_WINDOW_DAYS: %q", v)
		}
		cfg.ReminderWindowDays = days
	}

	return cfg, nil
}
