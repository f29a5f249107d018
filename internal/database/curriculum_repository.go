package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/chembot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// CurriculumRepository handles grades, chapters and lessons
type CurriculumRepository struct {
	db *sqlx.DB
}

// NewCurriculumRepository creates a new repository instance
func NewCurriculumRepository(db *sqlx.DB) *CurriculumRepository {
	return &CurriculumRepository{db: db}
}

// ListGrades returns all grades ordered by name
func (r *CurriculumRepository) ListGrades(ctx context.Context) ([]models.Grade, error) {
	grades := []models.Grade{}
	if err := r.db.SelectContext(ctx, &grades, `SELECT id, name FROM grades ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list grades: %w", err)
	}
	return grades, nil
}

// ListChapters returns the chapters of a grade
func (r *CurriculumRepository) ListChapters(ctx context.Context, gradeID int64) ([]models.Chapter, error) {
	chapters := []models.Chapter{}
	query := r.db.Rebind(`SELECT id, grade_id, name FROM chapters WHERE grade_id = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &chapters, query, gradeID); err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	return chapters, nil
}

// ListLessons returns the lessons of a chapter
func (r *CurriculumRepository) ListLessons(ctx context.Context, chapterID int64) ([]models.Lesson, error) {
	lessons := []models.Lesson{}
	query := r.db.Rebind(`SELECT id, chapter_id, name FROM lessons WHERE chapter_id = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &lessons, query, chapterID); err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	return lessons, nil
}

// GetGrade returns a grade by id
func (r *CurriculumRepository) GetGrade(ctx context.Context, id int64) (*models.Grade, error) {
	var g models.Grade
	if err := r.get(ctx, &g, `SELECT id, name FROM grades WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &g, nil
}

// GetChapter returns a chapter by id
func (r *CurriculumRepository) GetChapter(ctx context.Context, id int64) (*models.Chapter, error) {
	var c models.Chapter
	if err := r.get(ctx, &c, `SELECT id, grade_id, name FROM chapters WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetLesson returns a lesson by id
func (r *CurriculumRepository) GetLesson(ctx context.Context, id int64) (*models.Lesson, error) {
	var l models.Lesson
	if err := r.get(ctx, &l, `SELECT id, chapter_id, name FROM lessons WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *CurriculumRepository) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := r.db.GetContext(ctx, dest, r.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get curriculum item: %w", err)
	}
	return nil
}

// EnsureGrade returns the id of the grade with this name, creating it if needed
func (r *CurriculumRepository) EnsureGrade(ctx context.Context, name string) (int64, error) {
	return r.ensure(ctx,
		`SELECT id FROM grades WHERE name = ?`,
		`INSERT INTO grades (name) VALUES (?) RETURNING id`,
		strings.TrimSpace(name))
}

// EnsureChapter returns the id of the chapter with this name in a grade, creating it if needed
func (r *CurriculumRepository) EnsureChapter(ctx context.Context, gradeID int64, name string) (int64, error) {
	return r.ensure(ctx,
		`SELECT id FROM chapters WHERE grade_id = ? AND name = ?`,
		`INSERT INTO chapters (grade_id, name) VALUES (?, ?) RETURNING id`,
		gradeID, strings.TrimSpace(name))
}

// EnsureLesson returns the id of the lesson with this name in a chapter, creating it if needed
func (r *CurriculumRepository) EnsureLesson(ctx context.Context, chapterID int64, name string) (int64, error) {
	return r.ensure(ctx,
		`SELECT id FROM lessons WHERE chapter_id = ? AND name = ?`,
		`INSERT INTO lessons (chapter_id, name) VALUES (?, ?) RETURNING id`,
		chapterID, strings.TrimSpace(name))
}

func (r *CurriculumRepository) ensure(ctx context.Context, selectQuery, insertQuery string, args ...interface{}) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, r.db.Rebind(selectQuery), args...)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up curriculum item: %w", err)
	}
	if err := r.db.QueryRowxContext(ctx, r.db.Rebind(insertQuery), args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to create curriculum item: %w", err)
	}
	return id, nil
}
