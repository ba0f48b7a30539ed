package channel

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/mealbook/internal/domain/user"
)

type fakeBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func Test_Telegram_Push(t *testing.T) {
	chat := int64(42)
	bot := &fakeBot{}
	tg := &Telegram{Bot: bot}

	err := tg.Push(context.Background(), user.User{ID: "u1", TelegramChatID: &chat}, Message{Subject: "Hi", Body: "Lunch?"})
	require.NoError(t, err)
	require.Len(t, bot.sent, 1)
	assert.Equal(t, chat, bot.sent[0].ChatID)
	assert.Equal(t, "Hi\n\nLunch?", bot.sent[0].Text)

	err = tg.Push(context.Background(), user.User{ID: "u2"}, Message{Body: "x"})
	assert.ErrorIs(t, err, ErrNoAddress)

	bot.err = errors.New("boom")
	err = tg.Push(context.Background(), user.User{ID: "u1", TelegramChatID: &chat}, Message{Body: "x"})
	assert.Error(t, err)
}

func Test_SMTP_Email(t *testing.T) {
	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	s := NewSMTP(SMTPConfig{Host: "mail.local", Port: 25, From: "lunch@office.local"})
	s.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		return nil
	}

	err := s.Email(context.Background(), user.User{Email: "ana@office.local"}, Message{Subject: "Booked", Body: "See you"})
	require.NoError(t, err)
	assert.Equal(t, "mail.local:25", gotAddr)
	assert.Equal(t, []string{"ana@office.local"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Booked\r\n")
	assert.Contains(t, string(gotMsg), "See you")

	err = s.Email(context.Background(), user.User{}, Message{})
	assert.ErrorIs(t, err, ErrNoAddress)
}
