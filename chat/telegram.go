// Package chat connects the service to the Telegram group: it long-polls for
// inbound messages and sends replies and announcements.
package chat

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	defaultReconnectDelay = 10 * time.Second
	defaultPollTimeout    = 10
)

// Message is an inbound text message
type Message struct {
	ChatID int64
	From   string
	Text   string
}

// Handler is called once per inbound message, in arrival order
type Handler func(ctx context.Context, msg Message)

// Transport is a bidirectional chat connection
type Transport interface {
	Poll(ctx context.Context, handle Handler) error
	Send(ctx context.Context, chatID int64, text string) error
}

// botAPI is the subset of *tgbotapi.BotAPI the transport uses
type botAPI interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramTransport polls the Bot API with getUpdates. A failed poll is
// retried after the reconnect delay; it never ends Poll.
type TelegramTransport struct {
	bot            botAPI
	reconnectDelay time.Duration
	pollTimeout    int
}

// NewTelegramTransport authenticates with token and returns a transport
func NewTelegramTransport(token string, reconnectDelay time.Duration) (*TelegramTransport, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, eris.Wrap(err, "failed to connect to telegram")
	}
	zap.L().Info("telegram bot authorized", zap.String("username", bot.Self.UserName))
	return newTelegramTransport(bot, reconnectDelay), nil
}

func newTelegramTransport(bot botAPI, reconnectDelay time.Duration) *TelegramTransport {
	if reconnectDelay <= 0 {
		reconnectDelay = defaultReconnectDelay
	}
	return &TelegramTransport{
		bot:            bot,
		reconnectDelay: reconnectDelay,
		pollTimeout:    defaultPollTimeout,
	}
}

// Poll delivers text messages to handle until ctx is done
func (t *TelegramTransport) Poll(ctx context.Context, handle Handler) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = t.pollTimeout
	cfg.AllowedUpdates = []string{"message"}

	zap.L().Info("📨 chat polling started")
	for {
		if err := ctx.Err(); err != nil {
			zap.L().Info("chat polling stopped")
			return nil
		}

		updates, err := t.bot.GetUpdates(cfg)
		if err != nil {
			zap.L().Warn("chat poll failed, reconnecting",
				zap.Duration("delay", t.reconnectDelay),
				zap.Error(err),
			)
			if !wait(ctx, t.reconnectDelay) {
				zap.L().Info("chat polling stopped")
				return nil
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= cfg.Offset {
				cfg.Offset = update.UpdateID + 1
			}
			msg := update.Message
			if msg == nil || msg.Chat == nil || msg.Text == "" {
				continue
			}
			from := ""
			if msg.From != nil {
				from = msg.From.UserName
			}
			handle(ctx, Message{ChatID: msg.Chat.ID, From: from, Text: msg.Text})
		}
	}
}

// Send posts text to chatID
func (t *TelegramTransport) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return eris.Wrapf(err, "failed to send message to chat %d", chatID)
	}
	return nil
}

func wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
