package models

import "time"

// User represents a Telegram user of the bot
type User struct {
	ID         int64     `json:"id" db:"id"`
	TelegramID int64     `json:"telegram_id" db:"telegram_id"`
	Username   string    `json:"username" db:"username"`
	FirstName  string    `json:"first_name" db:"first_name"`
	LastName   string    `json:"last_name" db:"last_name"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	LastActive time.Time `json:"last_active" db:"last_active"`
}

// DisplayName returns the best human readable name for the user
func (u User) DisplayName() string {
	switch {
	case u.Username != "":
		return "@" + u.Username
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return "user"
	}
}

// BlockedUser is an entry of the block list
type BlockedUser struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"` // Telegram user id
	Reason    string    `json:"reason" db:"reason"`
	BlockedBy int64     `json:"blocked_by" db:"blocked_by"`
	BlockedAt time.Time `json:"blocked_at" db:"blocked_at"`
}
