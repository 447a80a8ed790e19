package config

import (
	"errors"
	"strings"
	"time"
)

// BotConfig holds runtime configuration for the Telegram bot.
type BotConfig struct {
	Environment    string
	LogLevel       string
	TelegramToken  string
	BackendURL     string
	LoginURL       string
	BotSecretKey   string
	PollTimeout    time.Duration
	RequestTimeout time.Duration
	Debug          bool
}

// LoadBotConfig constructs a BotConfig from environment variables.
func LoadBotConfig() BotConfig {
	backend := strings.TrimRight(GetString("BACKEND_URL", "http://localhost:4000"), "/")
	return BotConfig{
		Environment:    GetString("APP_ENV", "development"),
		LogLevel:       GetString("LOG_LEVEL", "info"),
		TelegramToken:  GetString("TELEGRAM_BOT_TOKEN", ""),
		BackendURL:     backend,
		LoginURL:       GetString("BOT_LOGIN_URL", backend),
		BotSecretKey:   GetString("BOT_SECRET_KEY", ""),
		PollTimeout:    GetSeconds("BOT_POLL_TIMEOUT_SECONDS", 60),
		RequestTimeout: GetSeconds("BOT_REQUEST_TIMEOUT_SECONDS", 30),
		Debug:          GetBool("BOT_DEBUG", false),
	}
}

// Validate reports missing settings.
func (c BotConfig) Validate() error {
	var problems []error
	if strings.TrimSpace(c.TelegramToken) == "" {
		problems = append(problems, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	if strings.TrimSpace(c.BotSecretKey) == "" {
		problems = append(problems, errors.New("BOT_SECRET_KEY is required"))
	}
	return errors.Join(problems...)
}
