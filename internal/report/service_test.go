package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/chembot/internal/database"
	"github.com/example/chembot/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeMailer struct {
	subjects    []string
	attachments []string
}

func (m *fakeMailer) Send(subject, _, attachment string) error {
	m.subjects = append(m.subjects, subject)
	m.attachments = append(m.attachments, attachment)
	return nil
}

type fakeNotifier struct {
	paths    []string
	captions []string
}

func (n *fakeNotifier) SendReport(_ context.Context, path, caption string) error {
	n.paths = append(n.paths, path)
	n.captions = append(n.captions, caption)
	return nil
}

// seed creates two users, a grade with six questions and finished quizzes
func seed(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Connect(filepath.Join(t.TempDir(), "chembot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := database.NewUserRepository(db)
	for _, id := range []int64{101, 102} {
		require.NoError(t, users.Upsert(ctx, &models.User{TelegramID: id, FirstName: fmt.Sprintf("user%d", id)}))
	}

	cur := database.NewCurriculumRepository(db)
	gradeID, err := cur.EnsureGrade(ctx, "Grade 11")
	require.NoError(t, err)
	chapterID, err := cur.EnsureChapter(ctx, gradeID, "Organic")
	require.NoError(t, err)
	lessonID, err := cur.EnsureLesson(ctx, chapterID, "Alkanes")
	require.NoError(t, err)

	qr := database.NewQuestionRepository(db)
	var questions []models.Question
	for i := 0; i < 6; i++ {
		q := models.Question{LessonID: &lessonID, Text: fmt.Sprintf("q%d", i), Options: models.Options{"a", "b"}}
		require.NoError(t, qr.Create(ctx, &q))
		questions = append(questions, q)
	}

	sessions := database.NewQuizSessionRepository(db)
	// three quizzes per user: question 0 is always wrong, the rest always right
	for _, userID := range []int64{101, 102} {
		for round := 0; round < 3; round++ {
			s := &models.QuizSession{QuizUID: "u", UserID: userID, QuizType: models.QuizGrade, ScopeID: gradeID, TotalQuestions: 2}
			require.NoError(t, sessions.CreateSession(ctx, s))
			for _, q := range questions[:2] {
				correct := q.ID != questions[0].ID
				opt := 1
				if correct {
					opt = 0
				}
				require.NoError(t, sessions.RecordAnswer(ctx, &models.AnswerRecord{
					SessionID: s.ID, UserID: userID, QuestionID: q.ID,
					SelectedOption: &opt, IsCorrect: correct, Status: models.StatusAnswered,
				}))
			}
			require.NoError(t, sessions.FinalizeSession(ctx, s.ID, 1, 2))
		}
	}
	return db
}

func TestServiceRun(t *testing.T) {
	db := seed(t)
	dir := t.TempDir()
	mailer := &fakeMailer{}
	notifier := &fakeNotifier{}
	svc := NewService(database.NewStatisticsRepository(db), dir, time.UTC, mailer, nil)
	svc.SetNotifier(notifier)
	assert.True(t, svc.Status().EmailEnabled)

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -1)
	to := now.AddDate(0, 0, 1)
	path, err := svc.Run(context.Background(), from, to)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	_, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, mailer.attachments)
	assert.Equal(t, []string{path}, notifier.paths)
	assert.Contains(t, notifier.captions[0], "Quizzes: 6 started, 6 completed")

	status := svc.Status()
	assert.False(t, status.Running)
	assert.Equal(t, path, status.LastFile)
	assert.Empty(t, status.LastError)
	assert.False(t, status.LastRun.IsZero())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetSummary, SheetUsers, SheetGrades, SheetDifficult, SheetActivity, SheetCharts}, f.GetSheetList())

	users, err := f.GetRows(SheetUsers)
	require.NoError(t, err)
	assert.Len(t, users, 3)

	grades, err := f.GetRows(SheetGrades)
	require.NoError(t, err)
	require.Len(t, grades, 2)
	assert.Equal(t, []string{"Grade 11", "2", "12", "6", "50"}, grades[1])

	difficult, err := f.GetRows(SheetDifficult)
	require.NoError(t, err)
	require.Len(t, difficult, 2)
	assert.Equal(t, "q0", difficult[1][1])
	assert.Equal(t, "Very Hard", difficult[1][5])

	activity, err := f.GetRows(SheetActivity)
	require.NoError(t, err)
	assert.Len(t, activity, 25)

	pics, err := f.GetPictures(SheetCharts, "A1")
	require.NoError(t, err)
	assert.Len(t, pics, 1)
}

type blockingStats struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStats) Overall(context.Context, time.Time, time.Time) (*models.OverallStats, error) {
	close(b.entered)
	<-b.release
	return nil, errors.New("database is gone")
}

func (b *blockingStats) UserProgress(context.Context, time.Time, time.Time) ([]models.UserProgress, error) {
	return nil, nil
}

func (b *blockingStats) GradePerformance(context.Context, time.Time, time.Time) ([]models.GradePerformance, error) {
	return nil, nil
}

func (b *blockingStats) DifficultQuestions(context.Context, time.Time, time.Time, int, float64) ([]models.DifficultQuestion, error) {
	return nil, nil
}

func (b *blockingStats) HourlyActivity(context.Context, time.Time, time.Time, *time.Location) ([]models.HourActivity, error) {
	return nil, nil
}

func TestServiceRejectsConcurrentRunsAndRecordsErrors(t *testing.T) {
	stats := &blockingStats{entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(stats, t.TempDir(), nil, nil, nil)
	assert.False(t, svc.Status().EmailEnabled)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Run(context.Background(), time.Now().AddDate(0, 0, -7), time.Now())
		done <- err
	}()
	<-stats.entered

	_, err := svc.Run(context.Background(), time.Now().AddDate(0, 0, -7), time.Now())
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(stats.release)
	require.Error(t, <-done)
	status := svc.Status()
	assert.False(t, status.Running)
	assert.Contains(t, status.LastError, "database is gone")
}

func TestWeekRange(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	// Sunday 09:00 local time
	now := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)

	from, to := WeekRange(now, loc)

	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, loc), from)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, loc), to)
	assert.Equal(t, "chemistry_report_2024-03-03_2024-03-09.xlsx", FileName(&Data{From: from, To: to, Location: loc}))
}

func TestBarChart(t *testing.T) {
	data, err := BarChart("Quizzes by hour", []string{"0", "1", "2"}, []float64{3, 0, 7})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, chartWidth, img.Bounds().Dx())
	assert.Equal(t, chartHeight, img.Bounds().Dy())

	_, err = BarChart("broken", []string{"a"}, nil)
	assert.Error(t, err)
}
