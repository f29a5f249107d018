package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/example/chembot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// countedStatuses are the answer statuses that reflect the user's knowledge
const countedStatuses = `('answered', 'skipped', 'timed_out')`

// StatisticsRepository runs the aggregate queries behind /stats and the reports
type StatisticsRepository struct {
	db *sqlx.DB
}

// NewStatisticsRepository creates a new repository instance
func NewStatisticsRepository(db *sqlx.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// UserStats returns the aggregates of all completed quizzes of a user
func (r *StatisticsRepository) UserStats(ctx context.Context, userID int64) (*models.UserStats, error) {
	var stats models.UserStats
	query := `
		SELECT
			COUNT(*) AS quizzes,
			COALESCE(AVG(percentage), 0) AS average_percentage,
			COALESCE(MAX(percentage), 0) AS best_percentage,
			COALESCE(SUM(correct_count), 0) AS total_correct,
			COALESCE(SUM(total_questions), 0) AS total_questions
		FROM quiz_sessions
		WHERE user_id = ? AND end_time IS NOT NULL AND abandoned = FALSE`
	if err := r.db.GetContext(ctx, &stats, r.db.Rebind(query), userID); err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return &stats, nil
}

// Leaderboard returns the users with the best average percentage
func (r *StatisticsRepository) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	entries := []models.LeaderboardEntry{}
	query := `
		SELECT u.telegram_id, u.username, u.first_name,
			COUNT(s.id) AS quizzes,
			AVG(s.percentage) AS average_percentage
		FROM quiz_sessions s
		JOIN users u ON u.telegram_id = s.user_id
		WHERE s.end_time IS NOT NULL AND s.abandoned = FALSE
		GROUP BY u.telegram_id, u.username, u.first_name
		ORDER BY average_percentage DESC, quizzes DESC
		LIMIT ?`
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), limit); err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	return entries, nil
}

// Overall returns the summary numbers of the period [from, to)
func (r *StatisticsRepository) Overall(ctx context.Context, from, to time.Time) (*models.OverallStats, error) {
	from, to = from.UTC(), to.UTC()
	stats := models.OverallStats{From: from, To: to}
	query := `
		SELECT
			(SELECT COUNT(*) FROM users) AS total_users,
			(SELECT COUNT(*) FROM users WHERE created_at >= ? AND created_at < ?) AS new_users,
			(SELECT COUNT(DISTINCT user_id) FROM quiz_sessions WHERE start_time >= ? AND start_time < ?) AS active_users,
			(SELECT COUNT(*) FROM quiz_sessions WHERE start_time >= ? AND start_time < ?) AS total_quizzes,
			(SELECT COUNT(*) FROM quiz_sessions
				WHERE start_time >= ? AND start_time < ? AND end_time IS NOT NULL AND abandoned = FALSE) AS completed_quizzes,
			(SELECT COALESCE(AVG(percentage), 0) FROM quiz_sessions
				WHERE start_time >= ? AND start_time < ? AND end_time IS NOT NULL AND abandoned = FALSE) AS average_percentage,
			(SELECT COALESCE(AVG(time_taken_seconds), 0) FROM quiz_sessions
				WHERE start_time >= ? AND start_time < ? AND end_time IS NOT NULL AND abandoned = FALSE) AS average_time_seconds,
			(SELECT COUNT(*) FROM quiz_answers
				WHERE answered_at >= ? AND answered_at < ? AND status IN ` + countedStatuses + `) AS total_answers,
			(SELECT COUNT(*) FROM quiz_answers
				WHERE answered_at >= ? AND answered_at < ? AND is_correct = TRUE) AS correct_answers,
			(SELECT COUNT(*) FROM questions) AS total_questions`
	args := make([]interface{}, 0, 16)
	for i := 0; i < 8; i++ {
		args = append(args, from, to)
	}
	if err := r.db.GetContext(ctx, &stats, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get overall stats: %w", err)
	}
	return &stats, nil
}

// UserProgress returns per-user aggregates of completed quizzes started in [from, to)
func (r *StatisticsRepository) UserProgress(ctx context.Context, from, to time.Time) ([]models.UserProgress, error) {
	rows := []models.UserProgress{}
	query := `
		SELECT u.telegram_id, u.username, u.first_name,
			COUNT(s.id) AS quizzes,
			COALESCE(AVG(s.percentage), 0) AS average_percentage,
			COALESCE(MAX(s.percentage), 0) AS best_percentage,
			COALESCE(SUM(s.time_taken_seconds), 0) AS total_time_seconds
		FROM users u
		JOIN quiz_sessions s ON s.user_id = u.telegram_id
		WHERE s.end_time IS NOT NULL AND s.abandoned = FALSE
		  AND s.start_time >= ? AND s.start_time < ?
		GROUP BY u.telegram_id, u.username, u.first_name
		ORDER BY average_percentage DESC, quizzes DESC`
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("failed to get user progress: %w", err)
	}
	return rows, nil
}

// UserSummaries returns every registered user with all-time quiz aggregates, including users without quizzes
func (r *StatisticsRepository) UserSummaries(ctx context.Context) ([]models.UserProgress, error) {
	rows := []models.UserProgress{}
	query := `
		SELECT u.telegram_id, u.username, u.first_name,
			COUNT(s.id) AS quizzes,
			COALESCE(AVG(s.percentage), 0) AS average_percentage,
			COALESCE(MAX(s.percentage), 0) AS best_percentage,
			COALESCE(SUM(s.time_taken_seconds), 0) AS total_time_seconds
		FROM users u
		LEFT JOIN quiz_sessions s ON s.user_id = u.telegram_id AND s.end_time IS NOT NULL AND s.abandoned = FALSE
		GROUP BY u.telegram_id, u.username, u.first_name
		ORDER BY quizzes DESC, u.telegram_id`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get user summaries: %w", err)
	}
	return rows, nil
}

// GradePerformance returns answer aggregates per grade for answers given in [from, to)
func (r *StatisticsRepository) GradePerformance(ctx context.Context, from, to time.Time) ([]models.GradePerformance, error) {
	rows := []models.GradePerformance{}
	query := `
		SELECT g.id AS grade_id, g.name AS grade_name,
			COUNT(a.id) AS attempts,
			COALESCE(SUM(CASE WHEN a.is_correct THEN 1 ELSE 0 END), 0) AS correct,
			COUNT(DISTINCT a.user_id) AS users
		FROM quiz_answers a
		JOIN questions q ON q.id = a.question_id
		JOIN lessons l ON l.id = q.lesson_id
		JOIN chapters c ON c.id = l.chapter_id
		JOIN grades g ON g.id = c.grade_id
		WHERE a.answered_at >= ? AND a.answered_at < ? AND a.status IN ` + countedStatuses + `
		GROUP BY g.id, g.name
		ORDER BY g.name`
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("failed to get grade performance: %w", err)
	}
	return rows, nil
}

// DifficultQuestions returns questions answered at least minAttempts times in [from, to)
// whose success rate is below maxRate percent, hardest first
func (r *StatisticsRepository) DifficultQuestions(ctx context.Context, from, to time.Time, minAttempts int, maxRate float64) ([]models.DifficultQuestion, error) {
	rows := []models.DifficultQuestion{}
	query := `
		SELECT q.id AS question_id, q.question_text,
			COUNT(a.id) AS attempts,
			COALESCE(SUM(CASE WHEN a.is_correct THEN 1 ELSE 0 END), 0) AS correct
		FROM quiz_answers a
		JOIN questions q ON q.id = a.question_id
		WHERE a.answered_at >= ? AND a.answered_at < ? AND a.status IN ` + countedStatuses + `
		GROUP BY q.id, q.question_text
		HAVING COUNT(a.id) >= ?`
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), from.UTC(), to.UTC(), minAttempts); err != nil {
		return nil, fmt.Errorf("failed to get difficult questions: %w", err)
	}

	difficult := rows[:0]
	for _, q := range rows {
		if q.SuccessRate() < maxRate {
			difficult = append(difficult, q)
		}
	}
	sort.SliceStable(difficult, func(i, j int) bool {
		if difficult[i].SuccessRate() != difficult[j].SuccessRate() {
			return difficult[i].SuccessRate() < difficult[j].SuccessRate()
		}
		return difficult[i].Attempts > difficult[j].Attempts
	})
	return difficult, nil
}

// HourlyActivity counts quizzes started in [from, to) by hour of day in loc
func (r *StatisticsRepository) HourlyActivity(ctx context.Context, from, to time.Time, loc *time.Location) ([]models.HourActivity, error) {
	var starts []time.Time
	query := r.db.Rebind(`SELECT start_time FROM quiz_sessions WHERE start_time >= ? AND start_time < ?`)
	if err := r.db.SelectContext(ctx, &starts, query, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("failed to get quiz start times: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	activity := make([]models.HourActivity, 24)
	for h := range activity {
		activity[h].Hour = h
	}
	for _, ts := range starts {
		activity[ts.In(loc).Hour()].Quizzes++
	}
	return activity, nil
}
