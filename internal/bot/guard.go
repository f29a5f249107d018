package bot

import (
	"context"

	"github.com/example/chembot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	reasonNotAdmin = "⛔ This command is only available for administrators."
	reasonBlocked  = "🚫 You have been blocked from using this bot. Contact an administrator if you think this is a mistake."
)

// Access is the outcome of a guard check. A denied Access carries the text shown to the user.
type Access struct {
	Allowed bool
	Reason  string
}

// Authorized grants access
func Authorized() Access {
	return Access{Allowed: true}
}

// Denied refuses access for reason
func Denied(reason string) Access {
	return Access{Reason: reason}
}

// requireAdmin allows configured administrators only
func (b *Bot) requireAdmin(userID int64) Access {
	if b.isAdmin(userID) {
		return Authorized()
	}
	return Denied(reasonNotAdmin)
}

// requireRegistered denies blocked users and registers everybody else,
// refreshing the stored profile and last activity
func (b *Bot) requireRegistered(ctx context.Context, from *tgbotapi.User) Access {
	if access := b.checkBlocked(ctx, from.ID); !access.Allowed {
		return access
	}
	user := &models.User{
		TelegramID: from.ID,
		Username:   from.UserName,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
	}
	if err := b.users.Upsert(ctx, user); err != nil {
		b.log.Warn("failed to register user", "user_id", from.ID, "error", err)
	}
	return Authorized()
}

// requireActive denies blocked users and refreshes the last activity of everybody else
func (b *Bot) requireActive(ctx context.Context, userID int64) Access {
	if access := b.checkBlocked(ctx, userID); !access.Allowed {
		return access
	}
	if err := b.users.Touch(ctx, userID); err != nil {
		b.log.Warn("failed to update last activity", "user_id", userID, "error", err)
	}
	return Authorized()
}

// checkBlocked never denies admins. A failing block list lookup lets the user through.
func (b *Bot) checkBlocked(ctx context.Context, userID int64) Access {
	if b.isAdmin(userID) {
		return Authorized()
	}
	blocked, err := b.blocks.IsBlocked(ctx, userID)
	if err != nil {
		b.log.Warn("failed to check block list", "user_id", userID, "error", err)
		return Authorized()
	}
	if blocked {
		return Denied(reasonBlocked)
	}
	return Authorized()
}

// deny tells the user why the request was refused
func (b *Bot) deny(chatID int64, access Access) {
	b.send(tgbotapi.NewMessage(chatID, access.Reason))
}
