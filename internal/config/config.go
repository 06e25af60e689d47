package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramBotToken string
	PublicURL        string
	WebhookSecret    string
	Port             string
	PollingMode      bool
	LogLevel         string

	// Per-user admission limits
	PendingCap         int
	LinkRateCapacity   int
	ActionRateCapacity int
	RateWindow         time.Duration

	// Cool-down between consecutive jobs against Instagram
	JobCooldownMin time.Duration
	JobCooldownMax time.Duration
}

func Load() (*Config, error) {
	// A missing .env file is fine; real deployments set env vars directly.
	_ = godotenv.Load()

	pendingCap, err := getEnvInt("PENDING_CAP", 2)
	if err != nil {
		return nil, err
	}
	linkCap, err := getEnvInt("LINK_RATE_CAPACITY", 4)
	if err != nil {
		return nil, err
	}
	actionCap, err := getEnvInt("ACTION_RATE_CAPACITY", 8)
	if err != nil {
		return nil, err
	}
	windowSecs, err := getEnvInt("RATE_WINDOW_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	cooldownMin, err := getEnvInt("JOB_COOLDOWN_MIN_SECONDS", 8)
	if err != nil {
		return nil, err
	}
	cooldownMax, err := getEnvInt("JOB_COOLDOWN_MAX_SECONDS", 15)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		PublicURL:          os.Getenv("PUBLIC_URL"),
		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		Port:               getEnvOrDefault("PORT", "8080"),
		PollingMode:        os.Getenv("POLLING_MODE") == "true",
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		PendingCap:         pendingCap,
		LinkRateCapacity:   linkCap,
		ActionRateCapacity: actionCap,
		RateWindow:         time.Duration(windowSecs) * time.Second,
		JobCooldownMin:     time.Duration(cooldownMin) * time.Second,
		JobCooldownMax:     time.Duration(cooldownMax) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	required := map[string]string{
		"TELEGRAM_BOT_TOKEN": c.TelegramBotToken,
	}
	if !c.PollingMode {
		required["PUBLIC_URL"] = c.PublicURL
		required["WEBHOOK_SECRET"] = c.WebhookSecret
	}

	for key, value := range required {
		if value == "" {
			return fmt.Errorf("required environment variable %s is not set", key)
		}
	}

	if c.PendingCap < 1 {
		return fmt.Errorf("PENDING_CAP must be at least 1")
	}
	if c.LinkRateCapacity < 1 || c.ActionRateCapacity < 1 {
		return fmt.Errorf("rate capacities must be at least 1")
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("RATE_WINDOW_SECONDS must be positive")
	}
	if c.JobCooldownMin < 0 || c.JobCooldownMax < c.JobCooldownMin {
		return fmt.Errorf("JOB_COOLDOWN_MAX_SECONDS must be >= JOB_COOLDOWN_MIN_SECONDS")
	}

	return nil
}

// WebhookPath returns the secret-bearing webhook route.
func (c *Config) WebhookPath() string {
	return "/telegram-webhook/" + c.WebhookSecret
}

// WebhookURL returns the full public URL Telegram should post updates to.
func (c *Config) WebhookURL() string {
	return strings.TrimRight(c.PublicURL, "/") + c.WebhookPath()
}

// getEnvOrDefault returns the environment variable value or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be an integer: %w", key, err)
	}
	return n, nil
}
