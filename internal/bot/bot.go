package bot

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API is the part of the Telegram client the bot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot polls Telegram for commands and dispatches them to a Handler.
type Bot struct {
	api            API
	handler        *Handler
	logger         *slog.Logger
	pollTimeout    time.Duration
	requestTimeout time.Duration
}

// New constructs a Bot.
func New(api API, handler *Handler, logger *slog.Logger, pollTimeout, requestTimeout time.Duration) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:            api,
		handler:        handler,
		logger:         logger,
		pollTimeout:    pollTimeout,
		requestTimeout: requestTimeout,
	}
}

// Run processes updates until ctx is cancelled or the update channel closes.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = int(b.pollTimeout.Seconds())
	updates := b.api.GetUpdatesChan(cfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handle(ctx, update)
		}
	}
}

func (b *Bot) handle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	if b.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.requestTimeout)
		defer cancel()
	}
	b.logger.Debug("command received", "command", msg.Command(), "chat_id", msg.Chat.ID)
	b.handler.HandleCommand(ctx, msg.Command(), msg.CommandArguments(), func(text string) {
		reply := tgbotapi.NewMessage(msg.Chat.ID, text)
		reply.ReplyToMessageID = msg.MessageID
		if _, err := b.api.Send(reply); err != nil {
			b.logger.Warn("reply not sent", "chat_id", msg.Chat.ID, "error", err)
		}
	})
}
