package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/chembot/pkg/models"
	"github.com/jmoiron/sqlx"
)

const userColumns = `id, telegram_id, username, first_name, last_name, created_at, last_active`

// UserRepository handles database operations for users
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert registers a user or refreshes the profile and last activity of a known one
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	ts := now()
	query := `
		INSERT INTO users (telegram_id, username, first_name, last_name, created_at, last_active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (telegram_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			last_active = excluded.last_active
		RETURNING id`
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(query),
		user.TelegramID, user.Username, user.FirstName, user.LastName, ts, ts,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	user.LastActive = ts
	return nil
}

// GetByTelegramID returns a user by Telegram ID
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE telegram_id = ?`), telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// Touch updates the last activity time of a user
func (r *UserRepository) Touch(ctx context.Context, telegramID int64) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET last_active = ? WHERE telegram_id = ?`), now(), telegramID)
	if err != nil {
		return fmt.Errorf("failed to update last activity: %w", err)
	}
	return nil
}

// GetAll returns all users ordered by registration time
func (r *UserRepository) GetAll(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}

// Count returns the number of registered users
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
