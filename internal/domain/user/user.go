package user

import "time"

// User is a chat user who owns plantings. ID is the Telegram chat id in decimal form.
type User struct {
	ID        string
	State     State
	CreatedAt time.Time
	UpdatedAt time.Time
}
