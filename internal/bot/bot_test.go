package bot

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/gooji/deployer/pkg/api/client"
	"github.com/gooji/deployer/pkg/logger"
)

type fakeAPI struct {
	updates chan tgbotapi.Update
	sent    []tgbotapi.MessageConfig
	stopped bool
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() { f.stopped = true }

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func command(chatID int64, text string) tgbotapi.Update {
	end := len(text)
	for i, r := range text {
		if r == ' ' {
			end = i
			break
		}
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 7,
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}},
	}}
}

func TestRunDispatchesCommands(t *testing.T) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 3)}
	reg := &fakeRegistrar{creds: client.Credentials{Username: "user_abcd1234", Password: "Abcdefgh1234"}}
	b := New(api, NewHandler(reg, "s3cret", "https://gooji.example", logger.Discard()), logger.Discard(), time.Second, time.Second)

	api.updates <- command(42, "/signin dev@example.com")
	api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}, Text: "hello"}}
	api.updates <- tgbotapi.Update{}
	close(api.updates)

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !api.stopped {
		t.Fatal("expected polling to stop")
	}
	if len(api.sent) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(api.sent))
	}
	if api.sent[0].ChatID != 42 || api.sent[0].Text != MsgProcessing || api.sent[0].ReplyToMessageID != 7 {
		t.Fatalf("unexpected first reply %+v", api.sent[0])
	}
	if len(reg.calls) != 1 || reg.calls[0] != "dev@example.com" {
		t.Fatalf("unexpected registrar calls %v", reg.calls)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update)}
	b := New(api, NewHandler(&fakeRegistrar{}, "", "", nil), nil, time.Second, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !api.stopped {
		t.Fatal("expected polling to stop")
	}
}
