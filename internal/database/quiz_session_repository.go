package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/chembot/pkg/models"
	"github.com/jmoiron/sqlx"
)

const sessionColumns = `id, quiz_uid, user_id, quiz_type, scope_id, title, duration_minutes, total_questions,
	correct_count, percentage, time_taken_seconds, start_time, end_time, abandoned`

// QuizSessionRepository persists quiz attempts and their answers
type QuizSessionRepository struct {
	db *sqlx.DB
}

// NewQuizSessionRepository creates a new repository instance
func NewQuizSessionRepository(db *sqlx.DB) *QuizSessionRepository {
	return &QuizSessionRepository{db: db}
}

// CreateSession inserts an open session and sets its ID
func (r *QuizSessionRepository) CreateSession(ctx context.Context, s *models.QuizSession) error {
	if s.StartTime.IsZero() {
		s.StartTime = now()
	}
	query := `
		INSERT INTO quiz_sessions (
			quiz_uid, user_id, quiz_type, scope_id, title, duration_minutes, total_questions, start_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(query),
		s.QuizUID, s.UserID, s.QuizType, s.ScopeID, s.Title, s.DurationMinutes, s.TotalQuestions, s.StartTime,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to create quiz session: %w", err)
	}
	return nil
}

// GetSession returns a session by id
func (r *QuizSessionRepository) GetSession(ctx context.Context, id int64) (*models.QuizSession, error) {
	var s models.QuizSession
	err := r.db.GetContext(ctx, &s, r.db.Rebind(`SELECT `+sessionColumns+` FROM quiz_sessions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz session: %w", err)
	}
	return &s, nil
}

// RecordAnswer stores the outcome of one question. A second record for the same
// session and question replaces the first one.
func (r *QuizSessionRepository) RecordAnswer(ctx context.Context, a *models.AnswerRecord) error {
	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = now()
	}
	query := `
		INSERT INTO quiz_answers (session_id, user_id, question_id, selected_option, is_correct, status, answered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, question_id) DO UPDATE SET
			selected_option = excluded.selected_option,
			is_correct = excluded.is_correct,
			status = excluded.status,
			answered_at = excluded.answered_at
		RETURNING id`
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(query),
		a.SessionID, a.UserID, a.QuestionID, a.SelectedOption, a.IsCorrect, a.Status, a.AnsweredAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to record answer: %w", err)
	}
	return nil
}

// FinalizeSession closes a session with its final score
func (r *QuizSessionRepository) FinalizeSession(ctx context.Context, id int64, correct, total int) error {
	return r.finalize(ctx, id, correct, total, false)
}

// AbandonSession closes a session that was replaced or cancelled before it finished
func (r *QuizSessionRepository) AbandonSession(ctx context.Context, id int64, correct, total int) error {
	return r.finalize(ctx, id, correct, total, true)
}

func (r *QuizSessionRepository) finalize(ctx context.Context, id int64, correct, total int, abandoned bool) error {
	s, err := r.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if s.Finished() {
		return ErrSessionFinalized
	}

	end := now()
	taken := int(end.Sub(s.StartTime).Seconds())
	if taken < 0 {
		taken = 0
	}

	query := `
		UPDATE quiz_sessions
		SET end_time = ?, time_taken_seconds = ?, correct_count = ?, total_questions = ?, percentage = ?, abandoned = ?
		WHERE id = ? AND end_time IS NULL`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		end, taken, correct, total, models.Rate(correct, total), abandoned, id)
	if err != nil {
		return fmt.Errorf("failed to finalize quiz session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionFinalized
	}
	return nil
}

// CloseStale marks sessions that were never finalized and started before cutoff as abandoned
func (r *QuizSessionRepository) CloseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE quiz_sessions
		SET end_time = ?, abandoned = TRUE
		WHERE end_time IS NULL AND start_time < ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), now(), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to close stale sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count closed sessions: %w", err)
	}
	return n, nil
}
