package bot

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/example/chembot/internal/database"
	"github.com/example/chembot/internal/excel"
	"github.com/example/chembot/internal/quiz"
	"github.com/example/chembot/internal/report"
	"github.com/example/chembot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeTelegram struct {
	mu        sync.Mutex
	sent      []tgbotapi.Chattable
	requests  []tgbotapi.Chattable
	nextID    int
	failSend  bool
	failEdits bool
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return tgbotapi.Message{}, errors.New("telegram is down")
	}
	if _, ok := c.(tgbotapi.EditMessageTextConfig); ok && f.failEdits {
		return tgbotapi.Message{}, errors.New("message to edit not found")
	}
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeTelegram) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) GetFileDirectURL(fileID string) (string, error) {
	return "http://files.invalid/" + fileID, nil
}

// messages returns the new messages sent so far
func (f *fakeTelegram) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeTelegram) edits() []tgbotapi.EditMessageTextConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.EditMessageTextConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

// lastText is the text of the last message or edit
func (f *fakeTelegram) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		switch m := f.sent[i].(type) {
		case tgbotapi.MessageConfig:
			return m.Text
		case tgbotapi.EditMessageTextConfig:
			return m.Text
		}
	}
	return ""
}

// lastMarkup is the keyboard of the last message or edit that carried one
func (f *fakeTelegram) lastMarkup() tgbotapi.InlineKeyboardMarkup {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		switch m := f.sent[i].(type) {
		case tgbotapi.MessageConfig:
			if kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
				return kb
			}
		case tgbotapi.EditMessageTextConfig:
			if m.ReplyMarkup != nil {
				return *m.ReplyMarkup
			}
		}
	}
	return tgbotapi.InlineKeyboardMarkup{}
}

func buttonData(kb tgbotapi.InlineKeyboardMarkup) []string {
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				out = append(out, *btn.CallbackData)
			}
		}
	}
	return out
}

type fakeEngine struct {
	started   []quiz.Request
	answers   [][2]int64
	skips     []int64
	ended     []int64
	cancelled []int64
	active    []int64
	startErr  error
	actionErr error
}

func (f *fakeEngine) Start(_ context.Context, req quiz.Request) error {
	f.started = append(f.started, req)
	return f.startErr
}

func (f *fakeEngine) Answer(_ context.Context, _, questionID int64, option int) error {
	f.answers = append(f.answers, [2]int64{questionID, int64(option)})
	return f.actionErr
}

func (f *fakeEngine) Skip(_ context.Context, _, questionID int64) error {
	f.skips = append(f.skips, questionID)
	return f.actionErr
}

func (f *fakeEngine) End(_ context.Context, userID int64) error {
	f.ended = append(f.ended, userID)
	return f.actionErr
}

func (f *fakeEngine) Cancel(_ context.Context, userID int64) bool {
	f.cancelled = append(f.cancelled, userID)
	for _, id := range f.active {
		if id == userID {
			return true
		}
	}
	return false
}

func (f *fakeEngine) ActiveUsers() []int64 { return f.active }

type fakeUsers struct {
	mu       sync.Mutex
	upserted []models.User
	touched  []int64
	all      []models.User
}

func (f *fakeUsers) Upsert(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, *u)
	return nil
}

func (f *fakeUsers) Touch(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeUsers) GetAll(context.Context) ([]models.User, error) { return f.all, nil }

type fakeBlocks struct {
	blocked map[int64]string
	err     error
}

func (f *fakeBlocks) Block(_ context.Context, userID int64, reason string, _ int64) error {
	f.blocked[userID] = reason
	return nil
}

func (f *fakeBlocks) Unblock(_ context.Context, userID int64) (bool, error) {
	_, ok := f.blocked[userID]
	delete(f.blocked, userID)
	return ok, nil
}

func (f *fakeBlocks) IsBlocked(_ context.Context, userID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.blocked[userID]
	return ok, nil
}

func (f *fakeBlocks) List(context.Context) ([]models.BlockedUser, error) {
	var out []models.BlockedUser
	for id, reason := range f.blocked {
		out = append(out, models.BlockedUser{UserID: id, Reason: reason})
	}
	return out, nil
}

type fakeCurriculum struct{}

func (fakeCurriculum) ListGrades(context.Context) ([]models.Grade, error) {
	return []models.Grade{{ID: 1, Name: "Grade 10"}, {ID: 2, Name: "Grade 11"}}, nil
}

func (fakeCurriculum) ListChapters(_ context.Context, gradeID int64) ([]models.Chapter, error) {
	return []models.Chapter{{ID: 10 + gradeID, GradeID: gradeID, Name: "Organic"}}, nil
}

func (fakeCurriculum) ListLessons(_ context.Context, chapterID int64) ([]models.Lesson, error) {
	return []models.Lesson{{ID: 100 + chapterID, ChapterID: chapterID, Name: "Alkanes"}}, nil
}

func (fakeCurriculum) GetGrade(_ context.Context, id int64) (*models.Grade, error) {
	names := map[int64]string{1: "Grade 10", 2: "Grade 11"}
	name, ok := names[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &models.Grade{ID: id, Name: name}, nil
}

func (fakeCurriculum) GetChapter(_ context.Context, id int64) (*models.Chapter, error) {
	return &models.Chapter{ID: id, Name: "Organic"}, nil
}

func (fakeCurriculum) GetLesson(_ context.Context, id int64) (*models.Lesson, error) {
	return &models.Lesson{ID: id, Name: "Alkanes"}, nil
}

type fakeStats struct{}

func (fakeStats) UserStats(context.Context, int64) (*models.UserStats, error) {
	return &models.UserStats{Quizzes: 2, AveragePercentage: 75, BestPercentage: 90, TotalCorrect: 15, TotalQuestions: 20}, nil
}

func (fakeStats) Leaderboard(context.Context, int) ([]models.LeaderboardEntry, error) {
	return []models.LeaderboardEntry{{TelegramID: 7, Username: "ali", Quizzes: 3, AveragePercentage: 88}}, nil
}

func (fakeStats) UserSummaries(context.Context) ([]models.UserProgress, error) { return nil, nil }

func (fakeStats) Overall(context.Context, time.Time, time.Time) (*models.OverallStats, error) {
	return &models.OverallStats{TotalUsers: 12, TotalQuestions: 40, TotalQuizzes: 9, CompletedQuizzes: 7}, nil
}

type fakeReports struct {
	runs   [][2]time.Time
	runErr error
}

func (f *fakeReports) Run(_ context.Context, from, to time.Time) (string, error) {
	f.runs = append(f.runs, [2]time.Time{from, to})
	if f.runErr != nil {
		return "", f.runErr
	}
	return "reports/chemistry_report.xlsx", nil
}

func (f *fakeReports) Analytics(_ context.Context, from, to time.Time) (*report.Data, error) {
	return &report.Data{From: from, To: to}, nil
}

func (f *fakeReports) Status() report.Status { return report.Status{} }

func (f *fakeReports) Location() *time.Location { return time.UTC }

type fakeImporter struct{}

func (fakeImporter) Import(context.Context, string, io.Reader) (*excel.ImportResult, error) {
	return &excel.ImportResult{}, nil
}

const (
	adminID = int64(1)
	userID  = int64(7)
)

type harness struct {
	bot    *Bot
	tg     *fakeTelegram
	engine *fakeEngine
	users  *fakeUsers
	blocks *fakeBlocks
	report *fakeReports
}

func newHarness() *harness {
	h := &harness{
		tg:     &fakeTelegram{},
		engine: &fakeEngine{},
		users:  &fakeUsers{},
		blocks: &fakeBlocks{blocked: map[int64]string{}},
		report: &fakeReports{},
	}
	cfg := DefaultConfig()
	cfg.AdminUserIDs[adminID] = true
	h.bot = newBot(h.tg, cfg, Deps{
		Quiz:       h.engine,
		Users:      h.users,
		Blocks:     h.blocks,
		Curriculum: fakeCurriculum{},
		Stats:      fakeStats{},
		Reports:    h.report,
		Importer:   fakeImporter{},
	})
	return h
}

func command(from int64, text string) *tgbotapi.Message {
	cmdLen := len(text)
	for i, r := range text {
		if r == ' ' {
			cmdLen = i
			break
		}
	}
	return &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: from, FirstName: "Sara", UserName: "sara"},
		Chat:      &tgbotapi.Chat{ID: from},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}
}

func press(from int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{MessageID: 50, Chat: &tgbotapi.Chat{ID: from}},
		Data:    data,
	}
}
