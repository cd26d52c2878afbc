package telegram

import "context"

// Client defines an interface for sending messages via a Telegram bot.
// This helps in decoupling the application logic from the specific bot library.
type Client interface {
	// SendMessage sends text to the user identified by userID (decimal chat id).
	// Delivery is not idempotent; callers must not retry blindly.
	SendMessage(ctx context.Context, userID string, text string) error
}
