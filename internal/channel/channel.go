// Package channel delivers user-facing messages. Delivery is fire-and-forget
// from the caller's point of view: an error means "not delivered, retry later".
package channel

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/mealbook/internal/domain/user"
)

// ErrNoAddress means the user has no address on this channel.
var ErrNoAddress = errors.New("channel: user has no address")

type Message struct {
	Subject string
	Body    string
}

type PushChannel interface {
	Push(ctx context.Context, u user.User, m Message) error
}

type EmailChannel interface {
	Email(ctx context.Context, u user.User, m Message) error
}

// Log writes messages to the logger instead of delivering them. It serves
// both capabilities when no real transport is configured.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Push(_ context.Context, u user.User, m Message) error {
	l.write("push", u, m)
	return nil
}

func (l Log) Email(_ context.Context, u user.User, m Message) error {
	l.write("email", u, m)
	return nil
}

func (l Log) write(kind string, u user.User, m Message) {
	if l.Logger == nil {
		return
	}
	l.Logger.Info("message",
		zap.String("channel", kind),
		zap.String("user_id", u.ID),
		zap.String("subject", m.Subject),
		zap.String("body", m.Body),
	)
}
