package notify

import (
	"context"
	"fmt"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/playguard/playguard/internal/domain"
)

// TelegramChannel forwards high-priority notifications to a compliance
// operators chat. Player-facing channels (email, push) are out of scope;
// this channel exists so operators see risk alerts and forced session ends
// as they happen.
type TelegramChannel struct {
	bot    *telebot.Bot
	chatID int64
}

// NewTelegramChannel builds the channel from a bot token.
func NewTelegramChannel(token string, chatID int64) (*TelegramChannel, error) {
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}

	return &TelegramChannel{bot: bot, chatID: chatID}, nil
}

// Bot exposes the underlying bot for health checks.
func (c *TelegramChannel) Bot() *telebot.Bot {
	return c.bot
}

// Name identifies the channel in logs.
func (c *TelegramChannel) Name() string {
	return "telegram"
}

// Deliver forwards the notification to the operators chat. Normal-priority
// notifications are skipped; only alerts reach the chat.
func (c *TelegramChannel) Deliver(ctx context.Context, notification *domain.Notification) error {
	if notification.Priority != "high" {
		return nil
	}

	text := fmt.Sprintf("[%s] %s\nuser: %s\n%s",
		notification.Type,
		notification.Title,
		notification.UserID,
		notification.Message,
	)

	_, err := c.bot.Send(&telebot.Chat{ID: c.chatID}, text)
	if err != nil {
		return fmt.Errorf("send telegram alert: %w", err)
	}

	return nil
}
