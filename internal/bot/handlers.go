package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/chembot/internal/database"
	"github.com/example/chembot/internal/quiz"
	"github.com/example/chembot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const msgNoActiveQuiz = "ℹ️ You have no active quiz. Use /quiz to start one."

// HandleCommand handles bot commands
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	if access := b.requireRegistered(ctx, message.From); !access.Allowed {
		b.deny(message.Chat.ID, access)
		return nil
	}

	chatID, userID := message.Chat.ID, message.From.ID
	switch cmd := message.Command(); {
	case cmd == "start":
		return b.handleStart(message)
	case cmd == "help":
		return b.handleHelp(chatID, userID)
	case cmd == "quiz":
		return b.showQuizMenu(chatID, 0, userID)
	case cmd == "stats":
		return b.handleStats(ctx, chatID, userID)
	case cmd == "cancel":
		return b.handleCancel(ctx, chatID, userID)
	case adminCommands[cmd]:
		return b.handleAdminCommand(ctx, message)
	default:
		return b.handleUnknownCommand(message)
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) error {
	b.conv.reset(message.From.ID)
	name := message.From.FirstName
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi, %s! Welcome to the Chemistry Quiz Bot 🧪\n\n"+
		"Test yourself with quizzes by grade, chapter or lesson, review your mistakes "+
		"and follow your progress.\n\nChoose an option below:", name)

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons(message.From.ID))
	return b.sendMessage(msg)
}

func (b *Bot) handleHelp(chatID, userID int64) error {
	text := "❓ Help\n\n" +
		"/start - main menu\n" +
		"/quiz - start a new quiz\n" +
		"/stats - your statistics and the leaderboard\n" +
		"/cancel - cancel the current quiz or action\n" +
		"/help - this message\n\n" +
		"During a quiz tap a letter to answer, ⏭ to skip a question or 🛑 to end the quiz early. " +
		"Each question has its own time limit and you can also pick an overall limit."
	if b.isAdmin(userID) {
		text += "\n\n🛠 Admin commands\n" +
			"/admin - admin panel\n" +
			"/block <id> [reason] - block a user\n" +
			"/unblock <id> - unblock a user\n" +
			"/blocked - list blocked users\n" +
			"/export_users - users as an Excel file\n" +
			"/import - upload questions from an Excel file\n" +
			"/generate_report - build the report of the last 7 days\n" +
			"/custom_report <YYYY-MM-DD> <YYYY-MM-DD> - report for a date range\n" +
			"/final_analytics - statistics of the last 7 days\n" +
			"/report_status - weekly report schedule and last run"
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard([][]MenuButton{{{Text: "🏠 Main menu", CallbackData: callbackMainMenu}}})
	return b.sendMessage(msg)
}

func (b *Bot) handleCancel(ctx context.Context, chatID, userID int64) error {
	_, inSetup := b.conv.state(userID)
	uploading := b.conv.awaitingUpload(userID)
	b.conv.reset(userID)
	cancelled := b.quiz.Cancel(ctx, userID)

	text := "ℹ️ Nothing to cancel."
	switch {
	case cancelled:
		text = "❌ Your quiz was cancelled."
	case inSetup || uploading:
		text = "❌ Cancelled."
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons(userID))
	return b.sendMessage(msg)
}

func (b *Bot) handleUnknownCommand(message *tgbotapi.Message) error {
	msg := tgbotapi.NewMessage(message.Chat.ID, "Unknown command. Use /help to see what I can do.")
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons(message.From.ID))
	return b.sendMessage(msg)
}

func (b *Bot) handleStats(ctx context.Context, chatID, userID int64) error {
	stats, err := b.stats.UserStats(ctx, userID)
	if err != nil {
		return err
	}
	board, err := b.stats.Leaderboard(ctx, b.config.LeaderboardSize)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, statsText(stats, board, userID))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "🧪 Start quiz", CallbackData: callbackQuizMenu}},
		{{Text: "🏠 Main menu", CallbackData: callbackMainMenu}},
	})
	return b.sendMessage(msg)
}

// HandleCallback handles inline button presses
func (b *Bot) HandleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	if cq.Message == nil || cq.Message.Chat == nil || cq.From == nil {
		return fmt.Errorf("invalid callback: required fields are missing")
	}

	// Always answer the callback query to remove the loading state
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.log.Warn("failed to answer callback", "error", err)
	}

	userID, chatID, messageID := cq.From.ID, cq.Message.Chat.ID, cq.Message.MessageID
	if access := b.requireActive(ctx, userID); !access.Allowed {
		b.deny(chatID, access)
		return nil
	}

	cb, err := parseCallback(cq.Data)
	if err != nil {
		return err
	}

	switch cb.action {
	case callbackMainMenu:
		b.conv.reset(userID)
		return b.showMenu(chatID, messageID, "🏠 Main menu - choose an option:", b.MainMenuButtons(userID))
	case callbackQuizMenu:
		return b.showQuizMenu(chatID, messageID, userID)
	case callbackHelp:
		return b.handleHelp(chatID, userID)
	case callbackStats:
		return b.handleStats(ctx, chatID, userID)
	case callbackEndQuiz:
		return b.handleEndQuiz(ctx, chatID, userID)
	case callbackRestartQuiz:
		return b.handleRestart(ctx, chatID, messageID, userID)
	case prefixQuizType:
		return b.handleQuizType(ctx, chatID, messageID, userID, cb.quizType)
	case prefixGradeChapters:
		return b.showChapters(ctx, chatID, messageID, userID, cb.arg(0))
	case prefixChapterLessons:
		return b.showLessons(ctx, chatID, messageID, cb.arg(0))
	case prefixGradeQuiz, prefixChapterQuiz, prefixLessonQuiz:
		return b.handleScope(ctx, chatID, messageID, userID, cb)
	case prefixQuizCount:
		return b.handleCount(chatID, messageID, userID, int(cb.arg(0)))
	case prefixQuizDuration:
		return b.handleDuration(ctx, chatID, messageID, userID, time.Duration(cb.arg(0))*time.Minute)
	case prefixAnswer:
		return b.handleAnswer(ctx, chatID, userID, cb.arg(0), int(cb.arg(1)))
	case prefixSkip:
		return b.handleSkip(ctx, chatID, userID, cb.arg(0))
	default:
		return b.handleAdminCallback(ctx, chatID, messageID, userID, cb.action)
	}
}

func (b *Bot) showQuizMenu(chatID int64, messageID int, userID int64) error {
	b.conv.reset(userID)
	b.conv.update(userID, func(st *UserState) { st.State = stateSelectingType })
	return b.showMenu(chatID, messageID, "🧪 What kind of quiz would you like?", quizTypeButtons())
}

func (b *Bot) handleQuizType(ctx context.Context, chatID int64, messageID int, userID int64, t models.QuizType) error {
	b.conv.update(userID, func(st *UserState) {
		*st = UserState{State: stateSelectingScope, Type: t}
		if !t.NeedsScope() {
			st.State = stateSelectingCount
		}
	})
	if !t.NeedsScope() {
		return b.showCountMenu(chatID, messageID)
	}

	grades, err := b.curriculum.ListGrades(ctx)
	if err != nil {
		return err
	}
	if len(grades) == 0 {
		return b.showMenu(chatID, messageID, "😔 No grades have been added yet.", quizTypeButtons())
	}

	next := prefixGradeChapters
	if t == models.QuizGrade {
		next = prefixGradeQuiz
	}
	names := make([]string, len(grades))
	data := make([]string, len(grades))
	for i, g := range grades {
		names[i] = g.Name
		data[i] = callbackData(next, g.ID)
	}
	return b.showMenu(chatID, messageID, "🎓 Choose a grade:", listButtons(names, data, callbackQuizMenu))
}

func (b *Bot) showChapters(ctx context.Context, chatID int64, messageID int, userID, gradeID int64) error {
	st := b.conv.update(userID, func(st *UserState) {
		if st.Type != models.QuizLesson {
			st.Type = models.QuizChapter
		}
		st.State = stateSelectingScope
	})
	chapters, err := b.curriculum.ListChapters(ctx, gradeID)
	if err != nil {
		return err
	}
	back := quizTypeData(st.Type)
	if len(chapters) == 0 {
		return b.showMenu(chatID, messageID, "😔 This grade has no chapters yet.", listButtons(nil, nil, back))
	}

	next := prefixChapterQuiz
	if st.Type == models.QuizLesson {
		next = prefixChapterLessons
	}
	names := make([]string, len(chapters))
	data := make([]string, len(chapters))
	for i, c := range chapters {
		names[i] = c.Name
		data[i] = callbackData(next, c.ID)
	}
	return b.showMenu(chatID, messageID, "📖 Choose a chapter:", listButtons(names, data, back))
}

func (b *Bot) showLessons(ctx context.Context, chatID int64, messageID int, chapterID int64) error {
	lessons, err := b.curriculum.ListLessons(ctx, chapterID)
	if err != nil {
		return err
	}
	back := quizTypeData(models.QuizLesson)
	if len(lessons) == 0 {
		return b.showMenu(chatID, messageID, "😔 This chapter has no lessons yet.", listButtons(nil, nil, back))
	}
	names := make([]string, len(lessons))
	data := make([]string, len(lessons))
	for i, l := range lessons {
		names[i] = l.Name
		data[i] = callbackData(prefixLessonQuiz, l.ID)
	}
	return b.showMenu(chatID, messageID, "📝 Choose a lesson:", listButtons(names, data, back))
}

// handleScope remembers the chosen grade, chapter or lesson and asks for the question count
func (b *Bot) handleScope(ctx context.Context, chatID int64, messageID int, userID int64, cb callback) error {
	id := cb.arg(0)
	var (
		t     models.QuizType
		title string
		err   error
	)
	switch cb.action {
	case prefixGradeQuiz:
		t = models.QuizGrade
		var g *models.Grade
		if g, err = b.curriculum.GetGrade(ctx, id); err == nil {
			title = g.Name
		}
	case prefixChapterQuiz:
		t = models.QuizChapter
		var c *models.Chapter
		if c, err = b.curriculum.GetChapter(ctx, id); err == nil {
			title = c.Name
		}
	default:
		t = models.QuizLesson
		var l *models.Lesson
		if l, err = b.curriculum.GetLesson(ctx, id); err == nil {
			title = l.Name
		}
	}
	if errors.Is(err, database.ErrNotFound) {
		return b.showMenu(chatID, messageID, "😔 This section no longer exists. Please choose again.", quizTypeButtons())
	}
	if err != nil {
		return err
	}

	b.conv.update(userID, func(st *UserState) {
		*st = UserState{State: stateSelectingCount, Type: t, ScopeID: id, Title: title}
	})
	return b.showCountMenu(chatID, messageID)
}

func (b *Bot) showCountMenu(chatID int64, messageID int) error {
	return b.showMenu(chatID, messageID, "🔢 How many questions?", b.countButtons())
}

func (b *Bot) handleCount(chatID int64, messageID int, userID int64, count int) error {
	if !b.config.allowsCount(count) {
		return fmt.Errorf("%w: question count %d", ErrBadCallback, count)
	}
	st, ok := b.conv.state(userID)
	if !ok || st.Type == "" || (st.Type.NeedsScope() && st.ScopeID == 0) {
		return b.setupExpired(chatID, messageID, userID)
	}
	b.conv.update(userID, func(st *UserState) {
		st.Count = count
		st.State = stateSelectingDuration
	})
	return b.showMenu(chatID, messageID, "⏱ Choose an overall time limit:", b.durationButtons())
}

func (b *Bot) handleDuration(ctx context.Context, chatID int64, messageID int, userID int64, d time.Duration) error {
	if !b.config.allowsDuration(d) {
		return fmt.Errorf("%w: duration %s", ErrBadCallback, d)
	}
	st, ok := b.conv.state(userID)
	if !ok || st.State != stateSelectingDuration || st.Count == 0 {
		return b.setupExpired(chatID, messageID, userID)
	}
	b.conv.reset(userID)

	req := quiz.Request{
		UserID:   userID,
		ChatID:   chatID,
		Type:     st.Type,
		ScopeID:  st.ScopeID,
		Title:    st.Title,
		Count:    st.Count,
		Duration: d,
	}
	b.conv.remember(req)

	text := fmt.Sprintf("🚀 Starting: %d questions, %s", req.Count, durationLabel(d))
	if req.Title != "" {
		text = fmt.Sprintf("🚀 Starting %s: %d questions, %s", req.Title, req.Count, durationLabel(d))
	}
	if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		b.log.Debug("failed to update setup message", "error", err)
	}
	return b.startQuiz(ctx, req)
}

func (b *Bot) handleRestart(ctx context.Context, chatID int64, messageID int, userID int64) error {
	req, ok := b.conv.lastRequest(userID)
	if !ok {
		return b.showQuizMenu(chatID, messageID, userID)
	}
	req.ChatID = chatID
	return b.startQuiz(ctx, req)
}

func (b *Bot) startQuiz(ctx context.Context, req quiz.Request) error {
	err := b.quiz.Start(ctx, req)
	if errors.Is(err, quiz.ErrNoQuestions) {
		return nil
	}
	return err
}

func (b *Bot) setupExpired(chatID int64, messageID int, userID int64) error {
	b.conv.reset(userID)
	return b.showMenu(chatID, messageID, "⌛ Your quiz setup has expired. Let's start again:", quizTypeButtons())
}

func (b *Bot) handleAnswer(ctx context.Context, chatID, userID, questionID int64, option int) error {
	return b.quizAction(chatID, userID, b.quiz.Answer(ctx, userID, questionID, option))
}

func (b *Bot) handleSkip(ctx context.Context, chatID, userID, questionID int64) error {
	return b.quizAction(chatID, userID, b.quiz.Skip(ctx, userID, questionID))
}

func (b *Bot) handleEndQuiz(ctx context.Context, chatID, userID int64) error {
	return b.quizAction(chatID, userID, b.quiz.End(ctx, userID))
}

// quizAction turns the expected engine errors into user feedback
func (b *Bot) quizAction(chatID, userID int64, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, quiz.ErrStaleAnswer):
		b.log.Debug("ignoring stale quiz action", "user_id", userID)
		return nil
	case errors.Is(err, quiz.ErrNoActiveQuiz):
		msg := tgbotapi.NewMessage(chatID, msgNoActiveQuiz)
		msg.ReplyMarkup = createKeyboard(b.MainMenuButtons(userID))
		return b.sendMessage(msg)
	default:
		return err
	}
}
