package database

import (
	"context"
	"testing"

	"github.com/example/chembot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func questionIDs(qs []models.Question) map[int64]bool {
	ids := make(map[int64]bool, len(qs))
	for _, q := range qs {
		ids[q.ID] = true
	}
	return ids
}

func TestRandomQuestionsReturnsAtMostAvailable(t *testing.T) {
	db := newTestDB(t)
	f := seedCurriculum(t, db, 2)
	repo := NewQuestionRepository(db)
	ctx := context.Background()

	qs, err := repo.RandomQuestions(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, qs, len(f.questions))
	assert.Len(t, questionIDs(qs), len(f.questions), "no duplicates")

	qs, err = repo.RandomQuestions(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, qs, 3)

	qs, err = repo.RandomQuestions(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestQuestionsRoundTripOptions(t *testing.T) {
	db := newTestDB(t)
	f := seedCurriculum(t, db, 1)

	q, err := questionByID(t, db, f.questions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.Options{"A", "B", "C", "D"}, q.Options)
	assert.Equal(t, 1, q.CorrectIndex)
	assert.Equal(t, "B", q.CorrectOption())
	require.NotNil(t, q.LessonID)
	assert.Equal(t, f.lessonIDs[0], *q.LessonID)

	_, err = questionByID(t, db, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuestionsByScope(t *testing.T) {
	db := newTestDB(t)
	f := seedCurriculum(t, db, 3)
	repo := NewQuestionRepository(db)
	ctx := context.Background()

	byLesson, err := repo.QuestionsByLesson(ctx, f.lessonIDs[0], 10)
	require.NoError(t, err)
	assert.Len(t, byLesson, 3)
	for _, q := range byLesson {
		assert.Equal(t, f.lessonIDs[0], *q.LessonID)
	}

	byChapter, err := repo.QuestionsByChapter(ctx, f.chapterID, 10)
	require.NoError(t, err)
	assert.Len(t, byChapter, 6)

	byGrade, err := repo.QuestionsByGrade(ctx, f.gradeID, 4)
	require.NoError(t, err)
	assert.Len(t, byGrade, 4)

	none, err := repo.QuestionsByChapter(ctx, f.chapterID+100, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestIncorrectQuestionsForUserUsesLatestAnswer(t *testing.T) {
	db := newTestDB(t)
	f := seedCurriculum(t, db, 2)
	repo := NewQuestionRepository(db)
	sessions := NewQuizSessionRepository(db)
	ctx := context.Background()
	const user = int64(77)

	q1, q2, q3, q4 := f.questions[0].ID, f.questions[1].ID, f.questions[2].ID, f.questions[3].ID

	first := createSession(t, db, user, 4)
	for _, a := range []models.AnswerRecord{
		{QuestionID: q1, SelectedOption: intPtr(0), IsCorrect: false, Status: models.StatusAnswered},
		{QuestionID: q2, SelectedOption: intPtr(0), IsCorrect: false, Status: models.StatusAnswered},
		{QuestionID: q3, IsCorrect: false, Status: models.StatusErrorSkipped},
		{QuestionID: q4, IsCorrect: false, Status: models.StatusTimedOut},
	} {
		a := a
		a.SessionID, a.UserID = first.ID, user
		require.NoError(t, sessions.RecordAnswer(ctx, &a))
	}

	second := createSession(t, db, user, 1)
	fixed := models.AnswerRecord{SessionID: second.ID, UserID: user, QuestionID: q1, SelectedOption: intPtr(1), IsCorrect: true, Status: models.StatusAnswered}
	require.NoError(t, sessions.RecordAnswer(ctx, &fixed))

	// another user's mistakes must not leak in
	other := createSession(t, db, 78, 1)
	wrong := models.AnswerRecord{SessionID: other.ID, UserID: 78, QuestionID: q1, SelectedOption: intPtr(2), Status: models.StatusAnswered}
	require.NoError(t, sessions.RecordAnswer(ctx, &wrong))

	// a later delivery error keeps the earlier wrong answer in review
	third := createSession(t, db, user, 2)
	for _, a := range []models.AnswerRecord{
		{QuestionID: q2, Status: models.StatusErrorSending},
		{QuestionID: q4, Status: models.StatusErrorSkipped},
	} {
		a := a
		a.SessionID, a.UserID = third.ID, user
		require.NoError(t, sessions.RecordAnswer(ctx, &a))
	}

	qs, err := repo.IncorrectQuestionsForUser(ctx, user, 10)
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{q2: true, q4: true}, questionIDs(qs))

	capped, err := repo.IncorrectQuestionsForUser(ctx, user, 1)
	require.NoError(t, err)
	assert.Len(t, capped, 1)
}

func TestQuestionFindAndUpdate(t *testing.T) {
	db := newTestDB(t)
	f := seedCurriculum(t, db, 1)
	repo := NewQuestionRepository(db)
	ctx := context.Background()

	q, err := repo.FindByText(ctx, &f.lessonIDs[0], "question")
	require.NoError(t, err)
	q.Options = models.Options{"X", "Y"}
	q.CorrectIndex = 0
	require.NoError(t, repo.Update(ctx, q))

	got, err := questionByID(t, db, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Options{"X", "Y"}, got.Options)

	_, err = repo.FindByText(ctx, nil, "question")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
