package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/example/chembot/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Connect(filepath.Join(t.TempDir(), "chembot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	gradeID   int64
	chapterID int64
	lessonIDs []int64
	questions []models.Question
}

// seedCurriculum creates one grade, one chapter with two lessons and
// perLesson questions in each lesson
func seedCurriculum(t *testing.T, db *sqlx.DB, perLesson int) fixture {
	t.Helper()
	ctx := context.Background()
	cur := NewCurriculumRepository(db)
	qr := NewQuestionRepository(db)

	var f fixture
	var err error
	f.gradeID, err = cur.EnsureGrade(ctx, "Grade 10")
	require.NoError(t, err)
	f.chapterID, err = cur.EnsureChapter(ctx, f.gradeID, "Atoms")
	require.NoError(t, err)
	for _, name := range []string{"Electrons", "Isotopes"} {
		id, err := cur.EnsureLesson(ctx, f.chapterID, name)
		require.NoError(t, err)
		f.lessonIDs = append(f.lessonIDs, id)
	}

	for _, lessonID := range f.lessonIDs {
		for i := 0; i < perLesson; i++ {
			lesson := lessonID
			q := models.Question{
				LessonID:     &lesson,
				Text:         "question",
				Options:      models.Options{"A", "B", "C", "D"},
				CorrectIndex: 1,
				Explanation:  "because",
			}
			require.NoError(t, qr.Create(ctx, &q))
			f.questions = append(f.questions, q)
		}
	}
	return f
}

func createSession(t *testing.T, db *sqlx.DB, userID int64, total int) *models.QuizSession {
	t.Helper()
	s := &models.QuizSession{
		QuizUID:        "uid",
		UserID:         userID,
		QuizType:       models.QuizRandom,
		Title:          "Random quiz",
		TotalQuestions: total,
	}
	require.NoError(t, NewQuizSessionRepository(db).CreateSession(context.Background(), s))
	return s
}

func intPtr(v int) *int { return &v }

func questionByID(t *testing.T, db *sqlx.DB, id int64) (*models.Question, error) {
	t.Helper()
	var q models.Question
	err := db.GetContext(context.Background(), &q, db.Rebind(`SELECT `+questionColumns+` FROM questions q WHERE q.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &q, err
}

// answersForSession returns the answers of a session in the order they were given
func answersForSession(t *testing.T, db *sqlx.DB, sessionID int64) []models.AnswerRecord {
	t.Helper()
	answers := []models.AnswerRecord{}
	require.NoError(t, db.SelectContext(context.Background(), &answers, db.Rebind(`
		SELECT id, session_id, user_id, question_id, selected_option, is_correct, status, answered_at
		FROM quiz_answers WHERE session_id = ? ORDER BY id`), sessionID))
	return answers
}
