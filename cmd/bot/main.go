package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/gooji/deployer/internal/bot"
	"github.com/gooji/deployer/pkg/api/client"
	"github.com/gooji/deployer/pkg/config"
	"github.com/gooji/deployer/pkg/logger"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg := config.LoadBotConfig()
	log := logger.New("bot", logger.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := client.New(cfg.BackendURL, client.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		log.Error("invalid backend url", "error", err)
		os.Exit(1)
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Error("failed to connect to telegram", "error", err)
		os.Exit(1)
	}
	api.Debug = cfg.Debug

	handler := bot.NewHandler(backend, cfg.BotSecretKey, cfg.LoginURL, log)
	b := bot.New(api, handler, log, cfg.PollTimeout, cfg.RequestTimeout)

	log.Info("bot starting", "username", api.Self.UserName, "backend", cfg.BackendURL)
	if err := b.Run(ctx); err != nil {
		log.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("bot stopped")
}
