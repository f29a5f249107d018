package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/example/chembot/internal/excel"
	"github.com/example/chembot/internal/report"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	reportDays       = 7
	maxReportDays    = 366
	maxUploadBytes   = 20 << 20
	customDateLayout = "2006-01-02"
)

var adminCommands = map[string]bool{
	"admin":           true,
	"adminpanel":      true,
	"block":           true,
	"unblock":         true,
	"blocked":         true,
	"export_users":    true,
	"import":          true,
	"generate_report": true,
	"final_generate":  true,
	"custom_report":   true,
	"final_analytics": true,
	"report_status":   true,
	"final_status":    true,
}

func (b *Bot) handleAdminCommand(ctx context.Context, message *tgbotapi.Message) error {
	chatID, userID := message.Chat.ID, message.From.ID
	if access := b.requireAdmin(userID); !access.Allowed {
		b.deny(chatID, access)
		return nil
	}

	args := strings.Fields(message.CommandArguments())
	switch message.Command() {
	case "admin", "adminpanel":
		return b.showAdminPanel(ctx, chatID, 0)
	case "block":
		return b.handleBlock(ctx, chatID, userID, args)
	case "unblock":
		return b.handleUnblock(ctx, chatID, args)
	case "blocked":
		return b.showBlocked(ctx, chatID)
	case "export_users":
		return b.exportUsers(ctx, chatID)
	case "import":
		return b.startImport(chatID, userID)
	case "generate_report", "final_generate":
		to := b.now()
		return b.generateReport(ctx, chatID, to.AddDate(0, 0, -reportDays), to)
	case "custom_report":
		return b.handleCustomReport(ctx, chatID, args)
	case "final_analytics":
		return b.showAnalytics(ctx, chatID)
	case "report_status", "final_status":
		return b.showReportStatus(chatID)
	}
	return b.handleUnknownCommand(message)
}

func (b *Bot) handleAdminCallback(ctx context.Context, chatID int64, messageID int, userID int64, action string) error {
	if access := b.requireAdmin(userID); !access.Allowed {
		b.deny(chatID, access)
		return nil
	}
	switch action {
	case callbackAdminPanel:
		return b.showAdminPanel(ctx, chatID, messageID)
	case callbackAdminBlocked:
		return b.showBlocked(ctx, chatID)
	case callbackAdminReport:
		to := b.now()
		return b.generateReport(ctx, chatID, to.AddDate(0, 0, -reportDays), to)
	case callbackAdminExport:
		return b.exportUsers(ctx, chatID)
	case callbackAdminImport:
		return b.startImport(chatID, userID)
	case callbackAdminAnalytics:
		return b.showAnalytics(ctx, chatID)
	}
	return fmt.Errorf("%w: unhandled action %q", ErrBadCallback, action)
}

func (b *Bot) showAdminPanel(ctx context.Context, chatID int64, messageID int) error {
	to := b.now()
	overall, err := b.stats.Overall(ctx, to.AddDate(0, 0, -reportDays), to)
	if err != nil {
		return err
	}
	return b.showMenu(chatID, messageID, systemStatsText(overall, len(b.quiz.ActiveUsers())), adminButtons())
}

func (b *Bot) handleBlock(ctx context.Context, chatID, adminID int64, args []string) error {
	if len(args) == 0 {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Usage: /block <user id> [reason]"))
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ Invalid user id: "+args[0]))
	}
	if b.isAdmin(target) {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ Administrators cannot be blocked."))
	}
	reason := strings.Join(args[1:], " ")
	if reason == "" {
		reason = "No reason given"
	}

	if err := b.blocks.Block(ctx, target, reason, adminID); err != nil {
		return err
	}
	if b.quiz.Cancel(ctx, target) {
		b.log.Info("cancelled quiz of blocked user", "user_id", target)
	}
	b.conv.reset(target)
	b.log.Info("user blocked", "user_id", target, "admin_id", adminID, "reason", reason)
	return b.sendMessage(tgbotapi.NewMessage(chatID, fmt.Sprintf("🚫 User %d blocked.\nReason: %s", target, reason)))
}

func (b *Bot) handleUnblock(ctx context.Context, chatID int64, args []string) error {
	if len(args) != 1 {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Usage: /unblock <user id>"))
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ Invalid user id: "+args[0]))
	}
	removed, err := b.blocks.Unblock(ctx, target)
	if err != nil {
		return err
	}
	if !removed {
		return b.sendMessage(tgbotapi.NewMessage(chatID, fmt.Sprintf("ℹ️ User %d is not blocked.", target)))
	}
	b.log.Info("user unblocked", "user_id", target)
	return b.sendMessage(tgbotapi.NewMessage(chatID, fmt.Sprintf("✅ User %d unblocked.", target)))
}

func (b *Bot) showBlocked(ctx context.Context, chatID int64) error {
	list, err := b.blocks.List(ctx)
	if err != nil {
		return err
	}
	return b.sendLong(chatID, blockedListText(list), [][]MenuButton{{{Text: "⬅️ Admin panel", CallbackData: callbackAdminPanel}}})
}

func (b *Bot) exportUsers(ctx context.Context, chatID int64) error {
	users, err := b.users.GetAll(ctx)
	if err != nil {
		return err
	}
	summaries, err := b.stats.UserSummaries(ctx)
	if err != nil {
		return err
	}
	buf, err := excel.UsersWorkbook(users, summaries)
	if err != nil {
		return err
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("users_%s.xlsx", b.now().Format(customDateLayout)),
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("👥 %d users", len(users))
	return b.sendMessage(doc)
}

func (b *Bot) startImport(chatID, userID int64) error {
	b.conv.setAwaitingUpload(userID, true)
	return b.sendMessage(tgbotapi.NewMessage(chatID, "📤 Send me an .xlsx or .csv file with the columns:\n"+
		"Grade | Chapter | Lesson | Question | Option 1 | Option 2 | Option 3 | Option 4 | "+
		"Correct option (1-4) | Explanation | Image URL\n\n"+
		"The first row is a header. Use /cancel to abort."))
}

// handleImportUpload imports the document an admin sent after /import
func (b *Bot) handleImportUpload(ctx context.Context, message *tgbotapi.Message) error {
	chatID, userID := message.Chat.ID, message.From.ID
	if !b.isAdmin(userID) {
		b.conv.setAwaitingUpload(userID, false)
		return nil
	}
	doc := message.Document
	if doc == nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "Please send the questions as a file, or /cancel."))
	}
	ext := strings.ToLower(filepath.Ext(doc.FileName))
	if ext != ".xlsx" && ext != ".csv" {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ Only .xlsx and .csv files are supported."))
	}
	if doc.FileSize > maxUploadBytes {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ The file is too large."))
	}
	b.conv.setAwaitingUpload(userID, false)

	url, err := b.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return fmt.Errorf("failed to get file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}

	result, err := b.importer.Import(ctx, doc.FileName, resp.Body)
	if err != nil {
		b.log.Warn("question import failed", "file", doc.FileName, "error", err)
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ Import failed: "+err.Error()))
	}
	b.log.Info("questions imported", "file", doc.FileName, "created", result.Created,
		"updated", result.Updated, "errors", len(result.Errors))
	return b.sendLong(chatID, importResultText(result), b.MainMenuButtons(userID))
}

func (b *Bot) handleCustomReport(ctx context.Context, chatID int64, args []string) error {
	usage := "Usage: /custom_report <YYYY-MM-DD> <YYYY-MM-DD>"
	if len(args) != 2 {
		return b.sendMessage(tgbotapi.NewMessage(chatID, usage))
	}
	from, to, err := parseReportRange(args[0], args[1], b.reports.Location())
	if err != nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ "+err.Error()+"\n"+usage))
	}
	return b.generateReport(ctx, chatID, from, to)
}

// parseReportRange parses two inclusive dates into the half-open range [from, last+1 day)
func parseReportRange(first, last string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	from, err := time.ParseInLocation(customDateLayout, first, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q", first)
	}
	end, err := time.ParseInLocation(customDateLayout, last, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q", last)
	}
	if end.Before(from) {
		return time.Time{}, time.Time{}, errors.New("the end date is before the start date")
	}
	to := end.AddDate(0, 0, 1)
	if to.Sub(from) > maxReportDays*24*time.Hour {
		return time.Time{}, time.Time{}, fmt.Errorf("the range is longer than %d days", maxReportDays)
	}
	return from, to, nil
}

// generateReport builds the report. The service delivers the file to the admins.
func (b *Bot) generateReport(ctx context.Context, chatID int64, from, to time.Time) error {
	b.send(tgbotapi.NewMessage(chatID, "⏳ Generating the report, this can take a moment..."))
	path, err := b.reports.Run(ctx, from, to)
	if errors.Is(err, report.ErrAlreadyRunning) {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "⏳ A report is already being generated. Please wait."))
	}
	if err != nil {
		return b.sendMessage(tgbotapi.NewMessage(chatID, "❌ Report generation failed: "+err.Error()))
	}
	return b.sendMessage(tgbotapi.NewMessage(chatID, "✅ Report ready: "+filepath.Base(path)))
}

func (b *Bot) showAnalytics(ctx context.Context, chatID int64) error {
	to := b.now()
	data, err := b.reports.Analytics(ctx, to.AddDate(0, 0, -reportDays), to)
	if err != nil {
		return err
	}
	return b.sendLong(chatID, analyticsText(data), nil)
}

func (b *Bot) showReportStatus(chatID int64) error {
	var next time.Time
	if b.schedule != nil {
		next = b.schedule.NextReport()
	}
	return b.sendMessage(tgbotapi.NewMessage(chatID, reportStatusText(b.reports.Status(), next, b.reports.Location())))
}
