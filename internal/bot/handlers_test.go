package bot

import (
	"context"
	"testing"
	"time"

	"github.com/example/chembot/internal/quiz"
	"github.com/example/chembot/internal/report"
	"github.com/example/chembot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pressAll(t *testing.T, h *harness, from int64, data ...string) {
	t.Helper()
	for _, d := range data {
		require.NoError(t, h.bot.HandleCallback(context.Background(), press(from, d)), d)
	}
}

func TestStartCommand(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(userID, "/start")))

	require.Len(t, h.users.upserted, 1)
	assert.Equal(t, userID, h.users.upserted[0].TelegramID)
	assert.Contains(t, h.tg.lastText(), "Hi, Sara!")
	data := buttonData(h.tg.lastMarkup())
	assert.Contains(t, data, callbackQuizMenu)
	assert.NotContains(t, data, callbackAdminPanel)
}

func TestStartCommandShowsAdminPanelToAdmins(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(adminID, "/start")))
	assert.Contains(t, buttonData(h.tg.lastMarkup()), callbackAdminPanel)
}

func TestGradeQuizSetup(t *testing.T) {
	h := newHarness()

	pressAll(t, h, userID, "quiz_menu", "quiz_type_grade")
	assert.Equal(t, []string{"grade_quiz_1", "grade_quiz_2", callbackQuizMenu}, buttonData(h.tg.lastMarkup()))

	pressAll(t, h, userID, "grade_quiz_1")
	assert.Equal(t, "🔢 How many questions?", h.tg.lastText())

	pressAll(t, h, userID, "quiz_count_10")
	assert.Contains(t, buttonData(h.tg.lastMarkup()), "quiz_duration_5")

	pressAll(t, h, userID, "quiz_duration_5")
	require.Len(t, h.engine.started, 1)
	assert.Equal(t, quiz.Request{
		UserID:   userID,
		ChatID:   userID,
		Type:     models.QuizGrade,
		ScopeID:  1,
		Title:    "Grade 10",
		Count:    10,
		Duration: 5 * time.Minute,
	}, h.engine.started[0])
	assert.Contains(t, h.tg.lastText(), "🚀 Starting Grade 10: 10 questions, ⏱ 5 min")

	_, inSetup := h.bot.conv.state(userID)
	assert.False(t, inSetup)
	assert.Len(t, h.users.touched, 5)
}

func TestLessonQuizSetup(t *testing.T) {
	h := newHarness()

	pressAll(t, h, userID, "quiz_type_lesson", "grade_chapters_2")
	assert.Equal(t, []string{"chapter_lessons_12", "quiz_type_lesson"}, buttonData(h.tg.lastMarkup()))

	pressAll(t, h, userID, "chapter_lessons_12")
	assert.Equal(t, []string{"lesson_quiz_112", "quiz_type_lesson"}, buttonData(h.tg.lastMarkup()))

	pressAll(t, h, userID, "lesson_quiz_112", "quiz_count_5", "quiz_duration_0")
	require.Len(t, h.engine.started, 1)
	req := h.engine.started[0]
	assert.Equal(t, models.QuizLesson, req.Type)
	assert.EqualValues(t, 112, req.ScopeID)
	assert.Equal(t, "Alkanes", req.Title)
	assert.Equal(t, 5, req.Count)
	assert.Zero(t, req.Duration)
}

func TestRandomQuizSkipsScope(t *testing.T) {
	h := newHarness()

	pressAll(t, h, userID, "quiz_type_random")
	assert.Equal(t, "🔢 How many questions?", h.tg.lastText())

	pressAll(t, h, userID, "quiz_count_15", "quiz_duration_10")
	require.Len(t, h.engine.started, 1)
	assert.Equal(t, models.QuizRandom, h.engine.started[0].Type)
	assert.Zero(t, h.engine.started[0].ScopeID)
	assert.Equal(t, 10*time.Minute, h.engine.started[0].Duration)
}

func TestUnknownGrade(t *testing.T) {
	h := newHarness()

	pressAll(t, h, userID, "quiz_type_grade", "grade_quiz_9")
	assert.Contains(t, h.tg.lastText(), "no longer exists")
}

func TestSetupExpired(t *testing.T) {
	h := newHarness()

	pressAll(t, h, userID, "quiz_count_10")
	assert.Contains(t, h.tg.lastText(), "setup has expired")

	pressAll(t, h, userID, "quiz_duration_5")
	assert.Contains(t, h.tg.lastText(), "setup has expired")
	assert.Empty(t, h.engine.started)
}

func TestCountNotOffered(t *testing.T) {
	h := newHarness()

	pressAll(t, h, userID, "quiz_type_random")
	err := h.bot.HandleCallback(context.Background(), press(userID, "quiz_count_7"))
	assert.ErrorIs(t, err, ErrBadCallback)
}

func TestRestartReusesLastRequest(t *testing.T) {
	h := newHarness()

	pressAll(t, h, userID, "quiz_type_random", "quiz_count_5", "quiz_duration_0", "restart_quiz")
	require.Len(t, h.engine.started, 2)
	assert.Equal(t, h.engine.started[0], h.engine.started[1])
}

func TestRestartWithoutHistoryShowsQuizMenu(t *testing.T) {
	h := newHarness()

	pressAll(t, h, userID, "restart_quiz")
	assert.Empty(t, h.engine.started)
	assert.Contains(t, buttonData(h.tg.lastMarkup()), "quiz_type_review")
}

func TestStartWithoutQuestionsIsNotAnError(t *testing.T) {
	h := newHarness()
	h.engine.startErr = quiz.ErrNoQuestions

	pressAll(t, h, userID, "quiz_type_review", "quiz_count_5", "quiz_duration_0")
	assert.Len(t, h.engine.started, 1)
}

func TestQuizActions(t *testing.T) {
	h := newHarness()

	pressAll(t, h, userID, "answer_451_2", "skip_452", "end_quiz")
	assert.Equal(t, [][2]int64{{451, 2}}, h.engine.answers)
	assert.Equal(t, []int64{452}, h.engine.skips)
	assert.Equal(t, []int64{userID}, h.engine.ended)
}

func TestStaleAnswerIsIgnored(t *testing.T) {
	h := newHarness()
	h.engine.actionErr = quiz.ErrStaleAnswer

	pressAll(t, h, userID, "answer_451_0")
	assert.Empty(t, h.tg.sent)
	require.Len(t, h.tg.requests, 1)
	_, ok := h.tg.requests[0].(tgbotapi.CallbackConfig)
	assert.True(t, ok)
}

func TestActionWithoutQuiz(t *testing.T) {
	h := newHarness()
	h.engine.actionErr = quiz.ErrNoActiveQuiz

	pressAll(t, h, userID, "skip_1")
	assert.Equal(t, msgNoActiveQuiz, h.tg.lastText())
}

func TestBlockedUserIsDenied(t *testing.T) {
	h := newHarness()
	h.blocks.blocked[userID] = "spam"

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(userID, "/quiz")))
	assert.Equal(t, reasonBlocked, h.tg.lastText())

	pressAll(t, h, userID, "answer_1_0")
	assert.Equal(t, reasonBlocked, h.tg.lastText())
	assert.Empty(t, h.engine.answers)
}

func TestHandleUpdateReportsBadCallback(t *testing.T) {
	h := newHarness()

	h.bot.handleUpdate(context.Background(), tgbotapi.Update{UpdateID: 1, CallbackQuery: press(userID, "answer_abc")})
	assert.Equal(t, msgBadCallback, h.tg.lastText())
}

func TestHandleUpdateReportsFailures(t *testing.T) {
	h := newHarness()
	h.engine.actionErr = assert.AnError

	h.bot.handleUpdate(context.Background(), tgbotapi.Update{UpdateID: 1, CallbackQuery: press(userID, "end_quiz")})
	assert.Equal(t, msgSomethingWrong, h.tg.lastText())
}

func TestPlainTextMessage(t *testing.T) {
	h := newHarness()
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: "hello",
	}

	require.NoError(t, h.bot.HandleMessage(context.Background(), msg))
	assert.Contains(t, h.tg.lastText(), "I don't understand")
}

func TestCancelCommand(t *testing.T) {
	h := newHarness()
	h.engine.active = []int64{userID}

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(userID, "/cancel")))
	assert.Equal(t, "❌ Your quiz was cancelled.", h.tg.lastText())

	h.engine.active = nil
	require.NoError(t, h.bot.HandleMessage(context.Background(), command(userID, "/cancel")))
	assert.Equal(t, "ℹ️ Nothing to cancel.", h.tg.lastText())
}

func TestStatsCommand(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(userID, "/stats")))
	text := h.tg.lastText()
	assert.Contains(t, text, "📝 Quizzes completed: 2")
	assert.Contains(t, text, "1. @ali - 88.0% (3 quizzes) 👈")
}

func TestHelpShowsAdminCommandsToAdmins(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(userID, "/help")))
	assert.NotContains(t, h.tg.lastText(), "/block")

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(adminID, "/help")))
	assert.Contains(t, h.tg.lastText(), "/block")
}

func TestAdminCommandsRequireAdmin(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(userID, "/block 9 spam")))
	assert.Equal(t, reasonNotAdmin, h.tg.lastText())
	assert.Empty(t, h.blocks.blocked)

	pressAll(t, h, userID, "admin_panel")
	assert.Equal(t, reasonNotAdmin, h.tg.lastText())
}

func TestBlockCommand(t *testing.T) {
	h := newHarness()
	h.engine.active = []int64{9}

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(adminID, "/block 9 posting spam")))
	assert.Equal(t, "posting spam", h.blocks.blocked[9])
	assert.Equal(t, []int64{9}, h.engine.cancelled)
	assert.Contains(t, h.tg.lastText(), "User 9 blocked")

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(adminID, "/block 10")))
	assert.Equal(t, "No reason given", h.blocks.blocked[10])

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(adminID, "/block 1")))
	assert.Contains(t, h.tg.lastText(), "cannot be blocked")

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(adminID, "/block abc")))
	assert.Contains(t, h.tg.lastText(), "Invalid user id")
}

func TestUnblockCommand(t *testing.T) {
	h := newHarness()
	h.blocks.blocked[9] = "spam"

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(adminID, "/unblock 9")))
	assert.Equal(t, "✅ User 9 unblocked.", h.tg.lastText())
	assert.Empty(t, h.blocks.blocked)

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(adminID, "/unblock 9")))
	assert.Equal(t, "ℹ️ User 9 is not blocked.", h.tg.lastText())
}

func TestAdminPanel(t *testing.T) {
	h := newHarness()
	h.engine.active = []int64{3, 4}

	pressAll(t, h, adminID, "admin_panel")
	text := h.tg.lastText()
	assert.Contains(t, text, "👥 Users: 12")
	assert.Contains(t, text, "🧪 Quizzes running now: 2")
	assert.Contains(t, buttonData(h.tg.lastMarkup()), callbackAdminReport)
}

func TestCustomReport(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(adminID, "/custom_report 2024-03-01 2024-03-07")))
	require.Len(t, h.report.runs, 1)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), h.report.runs[0][0])
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), h.report.runs[0][1])
	assert.Equal(t, "✅ Report ready: chemistry_report.xlsx", h.tg.lastText())

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(adminID, "/custom_report 2024-03-07")))
	assert.Contains(t, h.tg.lastText(), "Usage: /custom_report")
	assert.Len(t, h.report.runs, 1)
}

func TestGenerateReportWhileRunning(t *testing.T) {
	h := newHarness()
	h.report.runErr = report.ErrAlreadyRunning
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	h.bot.now = func() time.Time { return now }

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(adminID, "/generate_report")))
	require.Len(t, h.report.runs, 1)
	assert.Equal(t, now.AddDate(0, 0, -7), h.report.runs[0][0])
	assert.Equal(t, now, h.report.runs[0][1])
	assert.Contains(t, h.tg.lastText(), "already being generated")
}

func TestImportRejectsUnsupportedFiles(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(adminID, "/import")))
	assert.True(t, h.bot.conv.awaitingUpload(adminID))

	upload := &tgbotapi.Message{
		From:     &tgbotapi.User{ID: adminID},
		Chat:     &tgbotapi.Chat{ID: adminID},
		Document: &tgbotapi.Document{FileID: "f1", FileName: "questions.pdf", FileSize: 100},
	}
	require.NoError(t, h.bot.HandleMessage(context.Background(), upload))
	assert.Contains(t, h.tg.lastText(), "Only .xlsx and .csv")
	assert.True(t, h.bot.conv.awaitingUpload(adminID))

	require.NoError(t, h.bot.HandleMessage(context.Background(), command(adminID, "/cancel")))
	assert.False(t, h.bot.conv.awaitingUpload(adminID))
	assert.Equal(t, "❌ Cancelled.", h.tg.lastText())
}

func TestSendReportToAdmins(t *testing.T) {
	h := newHarness()
	h.bot.config.AdminUserIDs[2] = true

	require.NoError(t, h.bot.SendReport(context.Background(), "reports/r.xlsx", "weekly"))
	var chats []int64
	for _, c := range h.tg.sent {
		doc, ok := c.(tgbotapi.DocumentConfig)
		require.True(t, ok)
		assert.Equal(t, "weekly", doc.Caption)
		chats = append(chats, doc.ChatID)
	}
	assert.ElementsMatch(t, []int64{1, 2}, chats)
}
