package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/chembot/pkg/models"
	"github.com/jmoiron/sqlx"
)

const questionColumns = `q.id, q.lesson_id, q.question_text, q.options, q.correct_index, q.explanation, q.image_url, q.created_at`

// QuestionRepository is the read side of the question bank plus the import path
type QuestionRepository struct {
	db *sqlx.DB
}

// NewQuestionRepository creates a new repository instance
func NewQuestionRepository(db *sqlx.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// RandomQuestions returns up to n distinct questions in random order
func (r *QuestionRepository) RandomQuestions(ctx context.Context, n int) ([]models.Question, error) {
	return r.pick(ctx, `SELECT `+questionColumns+` FROM questions q ORDER BY RANDOM() LIMIT ?`, n)
}

// QuestionsByLesson returns up to n random questions of a lesson
func (r *QuestionRepository) QuestionsByLesson(ctx context.Context, lessonID int64, n int) ([]models.Question, error) {
	return r.pick(ctx, `
		SELECT `+questionColumns+`
		FROM questions q
		WHERE q.lesson_id = ?
		ORDER BY RANDOM() LIMIT ?`, n, lessonID)
}

// QuestionsByChapter returns up to n random questions of all lessons of a chapter
func (r *QuestionRepository) QuestionsByChapter(ctx context.Context, chapterID int64, n int) ([]models.Question, error) {
	return r.pick(ctx, `
		SELECT `+questionColumns+`
		FROM questions q
		JOIN lessons l ON l.id = q.lesson_id
		WHERE l.chapter_id = ?
		ORDER BY RANDOM() LIMIT ?`, n, chapterID)
}

// QuestionsByGrade returns up to n random questions of all chapters of a grade
func (r *QuestionRepository) QuestionsByGrade(ctx context.Context, gradeID int64, n int) ([]models.Question, error) {
	return r.pick(ctx, `
		SELECT `+questionColumns+`
		FROM questions q
		JOIN lessons l ON l.id = q.lesson_id
		JOIN chapters c ON c.id = l.chapter_id
		WHERE c.grade_id = ?
		ORDER BY RANDOM() LIMIT ?`, n, gradeID)
}

// IncorrectQuestionsForUser returns questions whose latest answer by the user was wrong,
// skipped or timed out. Questions dropped because of a delivery error don't count.
func (r *QuestionRepository) IncorrectQuestionsForUser(ctx context.Context, userID int64, limit int) ([]models.Question, error) {
	return r.pick(ctx, `
		SELECT `+questionColumns+`
		FROM questions q
		WHERE q.id IN (
			SELECT a.question_id
			FROM quiz_answers a
			WHERE a.user_id = ?
			  AND a.is_correct = FALSE
			  AND a.id IN (
				SELECT MAX(id) FROM quiz_answers
				WHERE user_id = ? AND status IN ('answered', 'skipped', 'timed_out')
				GROUP BY question_id
			  )
		)
		ORDER BY RANDOM() LIMIT ?`, limit, userID, userID)
}

// pick runs a question query whose last placeholder is the limit
func (r *QuestionRepository) pick(ctx context.Context, query string, limit int, args ...interface{}) ([]models.Question, error) {
	if limit <= 0 {
		return []models.Question{}, nil
	}
	questions := []models.Question{}
	args = append(args, limit)
	if err := r.db.SelectContext(ctx, &questions, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	return questions, nil
}

// Create inserts a new question and sets its ID
func (r *QuestionRepository) Create(ctx context.Context, q *models.Question) error {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now()
	}
	query := `
		INSERT INTO questions (lesson_id, question_text, options, correct_index, explanation, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(query),
		q.LessonID, q.Text, q.Options, q.CorrectIndex, q.Explanation, q.ImageURL, q.CreatedAt,
	).Scan(&q.ID)
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

// FindByText returns the question of a lesson with exactly this text
func (r *QuestionRepository) FindByText(ctx context.Context, lessonID *int64, text string) (*models.Question, error) {
	var (
		q   models.Question
		err error
	)
	if lessonID == nil {
		err = r.db.GetContext(ctx, &q, r.db.Rebind(`SELECT `+questionColumns+` FROM questions q WHERE q.lesson_id IS NULL AND q.question_text = ?`), text)
	} else {
		err = r.db.GetContext(ctx, &q, r.db.Rebind(`SELECT `+questionColumns+` FROM questions q WHERE q.lesson_id = ? AND q.question_text = ?`), *lessonID, text)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find question: %w", err)
	}
	return &q, nil
}

// Update overwrites the content of an existing question
func (r *QuestionRepository) Update(ctx context.Context, q *models.Question) error {
	query := `
		UPDATE questions
		SET lesson_id = ?, question_text = ?, options = ?, correct_index = ?, explanation = ?, image_url = ?
		WHERE id = ?`
	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		q.LessonID, q.Text, q.Options, q.CorrectIndex, q.Explanation, q.ImageURL, q.ID)
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	return nil
}

// Count returns the number of questions in the bank
func (r *QuestionRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM questions`); err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return n, nil
}
