package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/example/chembot/internal/excel"
	"github.com/example/chembot/internal/logger"
	"github.com/example/chembot/internal/quiz"
	"github.com/example/chembot/internal/report"
	"github.com/example/chembot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	msgSomethingWrong = "❌ Something went wrong. Please try again later."
	msgBadCallback    = "⚠️ This button is no longer valid. Please open the menu again with /start."
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// Telegram is the part of the Bot API client the bot talks to
type Telegram interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type poller interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// QuizEngine runs the quizzes
type QuizEngine interface {
	Start(ctx context.Context, req quiz.Request) error
	Answer(ctx context.Context, userID, questionID int64, option int) error
	Skip(ctx context.Context, userID, questionID int64) error
	End(ctx context.Context, userID int64) error
	Cancel(ctx context.Context, userID int64) bool
	ActiveUsers() []int64
}

// UserStore is the user registry
type UserStore interface {
	Upsert(ctx context.Context, user *models.User) error
	Touch(ctx context.Context, telegramID int64) error
	GetAll(ctx context.Context) ([]models.User, error)
}

// BlockList stores blocked users
type BlockList interface {
	Block(ctx context.Context, userID int64, reason string, blockedBy int64) error
	Unblock(ctx context.Context, userID int64) (bool, error)
	IsBlocked(ctx context.Context, userID int64) (bool, error)
	List(ctx context.Context) ([]models.BlockedUser, error)
}

// Curriculum lists the grade, chapter and lesson tree
type Curriculum interface {
	ListGrades(ctx context.Context) ([]models.Grade, error)
	ListChapters(ctx context.Context, gradeID int64) ([]models.Chapter, error)
	ListLessons(ctx context.Context, chapterID int64) ([]models.Lesson, error)
	GetGrade(ctx context.Context, id int64) (*models.Grade, error)
	GetChapter(ctx context.Context, id int64) (*models.Chapter, error)
	GetLesson(ctx context.Context, id int64) (*models.Lesson, error)
}

// Stats answers the statistics shown in chat
type Stats interface {
	UserStats(ctx context.Context, userID int64) (*models.UserStats, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	UserSummaries(ctx context.Context) ([]models.UserProgress, error)
	Overall(ctx context.Context, from, to time.Time) (*models.OverallStats, error)
}

// Reports builds the analytics reports
type Reports interface {
	Run(ctx context.Context, from, to time.Time) (string, error)
	Analytics(ctx context.Context, from, to time.Time) (*report.Data, error)
	Status() report.Status
	Location() *time.Location
}

// QuestionImporter loads questions from uploaded spreadsheets
type QuestionImporter interface {
	Import(ctx context.Context, fileName string, r io.Reader) (*excel.ImportResult, error)
}

// ReportSchedule tells when the weekly report runs next
type ReportSchedule interface {
	NextReport() time.Time
}

// Deps are the collaborators of the bot. Schedule may be nil.
type Deps struct {
	Quiz       QuizEngine
	Users      UserStore
	Blocks     BlockList
	Curriculum Curriculum
	Stats      Stats
	Reports    Reports
	Importer   QuestionImporter
	Schedule   ReportSchedule
	Logger     *logger.Logger
}

// Bot represents the Telegram bot application
type Bot struct {
	api        Telegram
	poller     poller
	config     *BotConfig
	quiz       QuizEngine
	users      UserStore
	blocks     BlockList
	curriculum Curriculum
	stats      Stats
	reports    Reports
	importer   QuestionImporter
	schedule   ReportSchedule
	log        *logger.Logger
	http       *http.Client
	conv       *conversations
	now        func() time.Time

	baseCtx context.Context
}

// New creates a new bot instance on top of a connected Bot API client
func New(api *tgbotapi.BotAPI, config *BotConfig, deps Deps) *Bot {
	b := newBot(api, config, deps)
	b.poller = api
	return b
}

func newBot(api Telegram, config *BotConfig, deps Deps) *Bot {
	if config == nil {
		config = DefaultConfig()
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	return &Bot{
		api:        api,
		config:     config,
		quiz:       deps.Quiz,
		users:      deps.Users,
		blocks:     deps.Blocks,
		curriculum: deps.Curriculum,
		stats:      deps.Stats,
		reports:    deps.Reports,
		importer:   deps.Importer,
		schedule:   deps.Schedule,
		log:        deps.Logger.With("component", "bot"),
		http:       &http.Client{Timeout: time.Minute},
		conv:       newConversations(),
		now:        time.Now,
		baseCtx:    context.Background(),
	}
}

// Start receives updates until ctx is cancelled. With a webhook URL configured it
// registers the webhook and returns at once, updates then arrive through Dispatch.
func (b *Bot) Start(ctx context.Context) error {
	b.baseCtx = ctx

	if b.config.WebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(b.config.WebhookURL)
		if err != nil {
			return fmt.Errorf("invalid webhook url: %w", err)
		}
		if _, err := b.api.Request(wh); err != nil {
			return fmt.Errorf("failed to set webhook: %w", err)
		}
		// the url carries the webhook secret
		b.log.Info("webhook registered")
		return nil
	}

	if b.poller == nil {
		return errors.New("bot has no update source")
	}
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.log.Warn("failed to delete webhook", "error", err)
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.config.PollTimeout
	updates := b.poller.GetUpdatesChan(updateConfig)
	b.log.Info("polling for updates")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// Stop stops receiving updates
func (b *Bot) Stop() {
	if b.poller != nil && b.config.WebhookURL == "" {
		b.poller.StopReceivingUpdates()
	}
	b.log.Info("bot stopped")
}

// Dispatch handles an update received by the webhook
func (b *Bot) Dispatch(update tgbotapi.Update) {
	go b.handleUpdate(b.baseCtx, update)
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	chatID := chatOf(update)
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic while handling update", "update_id", update.UpdateID, "panic", r,
				"stack", string(debug.Stack()))
			if chatID != 0 {
				b.send(tgbotapi.NewMessage(chatID, msgSomethingWrong))
			}
		}
	}()

	var err error
	switch {
	case update.Message != nil:
		err = b.HandleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		err = b.HandleCallback(ctx, update.CallbackQuery)
	default:
		return
	}
	if err == nil {
		return
	}

	if errors.Is(err, ErrBadCallback) {
		b.log.Warn("bad callback", "update_id", update.UpdateID, "error", err)
		if chatID != 0 {
			b.send(tgbotapi.NewMessage(chatID, msgBadCallback))
		}
		return
	}
	b.log.Error("failed to handle update", "update_id", update.UpdateID, "error", err)
	if chatID != 0 {
		b.send(tgbotapi.NewMessage(chatID, msgSomethingWrong))
	}
}

func chatOf(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID
	}
	return 0
}

// HandleMessage handles commands, pending uploads and plain text
func (b *Bot) HandleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if message.From == nil || message.Chat == nil {
		return nil
	}
	if message.IsCommand() {
		return b.HandleCommand(ctx, message)
	}
	if access := b.requireRegistered(ctx, message.From); !access.Allowed {
		b.deny(message.Chat.ID, access)
		return nil
	}
	if b.conv.awaitingUpload(message.From.ID) {
		return b.handleImportUpload(ctx, message)
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, "I don't understand. Use the menu below or /help.")
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons(message.From.ID))
	return b.sendMessage(msg)
}

// SendReport sends a report file to every administrator
func (b *Bot) SendReport(ctx context.Context, path, caption string) error {
	var errs []error
	for adminID := range b.config.AdminUserIDs {
		doc := tgbotapi.NewDocument(adminID, tgbotapi.FilePath(path))
		doc.Caption = truncate(caption, captionLimit)
		if err := b.sendMessage(doc); err != nil {
			errs = append(errs, fmt.Errorf("admin %d: %w", adminID, err))
		}
	}
	return errors.Join(errs...)
}

// isAdmin checks if a user is an admin
func (b *Bot) isAdmin(userID int64) bool {
	return b.config.AdminUserIDs[userID]
}

func (b *Bot) sendMessage(c tgbotapi.Chattable) error {
	if _, err := b.api.Send(c); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// send delivers c and only logs a failure
func (b *Bot) send(c tgbotapi.Chattable) {
	if err := b.sendMessage(c); err != nil {
		b.log.Warn("telegram send failed", "error", err)
	}
}

// showMenu replaces the menu in messageID, or sends a new one when there is none
func (b *Bot) showMenu(chatID int64, messageID int, text string, buttons [][]MenuButton) error {
	if messageID != 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, createKeyboard(buttons))
		_, err := b.api.Send(edit)
		if err == nil {
			return nil
		}
		b.log.Debug("failed to edit menu, sending a new one", "error", err)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard(buttons)
	return b.sendMessage(msg)
}

// sendLong splits text into messages Telegram accepts. The last one gets buttons.
func (b *Bot) sendLong(chatID int64, text string, buttons [][]MenuButton) error {
	chunks := splitMessage(text, b.config.MaxMessageLength)
	for i, chunk := range chunks {
		msg := tgbotapi.NewMessage(chatID, chunk)
		if i == len(chunks)-1 && buttons != nil {
			msg.ReplyMarkup = createKeyboard(buttons)
		}
		if err := b.sendMessage(msg); err != nil {
			return err
		}
	}
	return nil
}
