package channel

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/mealbook/internal/domain/user"
)

// Sender is the part of *tgbotapi.BotAPI used for pushes.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram pushes to the user's Telegram chat.
type Telegram struct {
	Bot Sender
}

func NewTelegram(token string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = false
	return &Telegram{Bot: bot}, nil
}

func (t *Telegram) Push(_ context.Context, u user.User, m Message) error {
	if u.TelegramChatID == nil {
		return ErrNoAddress
	}
	text := m.Body
	if m.Subject != "" {
		text = m.Subject + "\n\n" + m.Body
	}
	if _, err := t.Bot.Send(tgbotapi.NewMessage(*u.TelegramChatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
