package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/chembot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// BlockedUserRepository manages the block list
type BlockedUserRepository struct {
	db *sqlx.DB
}

// NewBlockedUserRepository creates a new repository instance
func NewBlockedUserRepository(db *sqlx.DB) *BlockedUserRepository {
	return &BlockedUserRepository{db: db}
}

// Block adds the user to the block list or updates the reason of an existing entry
func (r *BlockedUserRepository) Block(ctx context.Context, userID int64, reason string, blockedBy int64) error {
	query := `
		INSERT INTO blocked_users (user_id, reason, blocked_by, blocked_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			reason = excluded.reason,
			blocked_by = excluded.blocked_by,
			blocked_at = excluded.blocked_at`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), userID, reason, blockedBy, now()); err != nil {
		return fmt.Errorf("failed to block user: %w", err)
	}
	return nil
}

// Unblock removes the user from the block list. It reports whether the user was blocked.
func (r *BlockedUserRepository) Unblock(ctx context.Context, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM blocked_users WHERE user_id = ?`), userID)
	if err != nil {
		return false, fmt.Errorf("failed to unblock user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to unblock user: %w", err)
	}
	return n > 0, nil
}

// Get returns the block list entry of a user, or ErrNotFound
func (r *BlockedUserRepository) Get(ctx context.Context, userID int64) (*models.BlockedUser, error) {
	var b models.BlockedUser
	query := r.db.Rebind(`SELECT id, user_id, reason, blocked_by, blocked_at FROM blocked_users WHERE user_id = ?`)
	err := r.db.GetContext(ctx, &b, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blocked user: %w", err)
	}
	return &b, nil
}

// IsBlocked reports whether the user is on the block list
func (r *BlockedUserRepository) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	_, err := r.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns the block list, most recent first
func (r *BlockedUserRepository) List(ctx context.Context) ([]models.BlockedUser, error) {
	list := []models.BlockedUser{}
	query := `SELECT id, user_id, reason, blocked_by, blocked_at FROM blocked_users ORDER BY blocked_at DESC`
	if err := r.db.SelectContext(ctx, &list, query); err != nil {
		return nil, fmt.Errorf("failed to list blocked users: %w", err)
	}
	return list, nil
}
