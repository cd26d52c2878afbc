package telegram

import (
	"context"
	"fmt"
	"strconv"

	"gopkg.in/telebot.v3"
)

// messageSender is the part of *telebot.Bot used for outgoing messages.
type messageSender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelebotAdapter implements the domain telegram.Client using gopkg.in/telebot.v3.
type TelebotAdapter struct {
	bot messageSender
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends text to the chat identified by userID. telebot has no context support,
// so the send runs in its own goroutine and the call returns when ctx expires.
// The detached send may still deliver the message after that. The caller sees a failed
// dispatch and may send it again on the next pass; the Bot API gives no idempotency key.
func (tba *TelebotAdapter) SendMessage(ctx context.Context, userID string, text string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", userID, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		_, err := tba.bot.Send(telebot.ChatID(chatID), text, &telebot.SendOptions{DisableWebPagePreview: true})
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("sending to chat %d: %w", chatID, ctx.Err())
	}
}
