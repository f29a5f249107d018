package bot

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/chembot/internal/excel"
	"github.com/example/chembot/internal/quiz"
	"github.com/example/chembot/internal/report"
	"github.com/example/chembot/pkg/models"
)

const (
	progressCells = 10
	captionLimit  = 1024
	maxImportErrs = 10
)

var optionLetters = []string{"A", "B", "C", "D", "E", "F"}

func optionLetter(pos int) string {
	if pos >= 0 && pos < len(optionLetters) {
		return optionLetters[pos]
	}
	return fmt.Sprintf("%d", pos+1)
}

// progressBar draws number/total as ten cells
func progressBar(number, total int) string {
	filled := 0
	if total > 0 {
		filled = number * progressCells / total
	}
	if filled > progressCells {
		filled = progressCells
	}
	return strings.Repeat("🟩", filled) + strings.Repeat("⬜", progressCells-filled)
}

// formatDuration renders d as m:ss, or h:mm:ss from one hour on
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, secs%3600/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func questionText(v quiz.QuestionView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 Question %d/%d\n", v.Number, v.Total)
	sb.WriteString(progressBar(v.Number, v.Total))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "⏱ %s for this question", formatDuration(v.TimeLimit))
	if v.QuizLeft > 0 {
		fmt.Fprintf(&sb, " | ⌛ %s left", formatDuration(v.QuizLeft))
	}
	sb.WriteString("\n\n")
	sb.WriteString(v.Question.Text)
	sb.WriteString("\n")
	for pos, idx := range v.Order {
		fmt.Fprintf(&sb, "\n%s) %s", optionLetter(pos), v.Question.Options[idx])
	}
	return sb.String()
}

// questionButtons labels the options by display position, the payload carries the stored index
func questionButtons(v quiz.QuestionView) [][]MenuButton {
	options := make([]MenuButton, 0, len(v.Order))
	for pos, idx := range v.Order {
		options = append(options, MenuButton{Text: optionLetter(pos), CallbackData: answerData(v.Question.ID, idx)})
	}
	return [][]MenuButton{
		options,
		{
			{Text: "⏭ Skip", CallbackData: skipData(v.Question.ID)},
			{Text: "🛑 End quiz", CallbackData: callbackEndQuiz},
		},
	}
}

func feedbackText(f quiz.Feedback) string {
	var sb strings.Builder
	sb.WriteString(f.Question.Text)
	sb.WriteString("\n\n")
	if f.Selected >= 0 && f.Selected < len(f.Question.Options) {
		fmt.Fprintf(&sb, "Your answer: %s\n", f.Question.Options[f.Selected])
	}
	if f.Correct {
		sb.WriteString("✅ Correct!")
	} else {
		fmt.Fprintf(&sb, "❌ Wrong. Correct answer: %s", f.Question.CorrectOption())
	}
	if f.Question.Explanation != "" {
		fmt.Fprintf(&sb, "\n\n💡 %s", f.Question.Explanation)
	}
	return sb.String()
}

func timedOutText(q models.Question) string {
	text := fmt.Sprintf("%s\n\n⏰ Time is up for this question.\nCorrect answer: %s", q.Text, q.CorrectOption())
	if q.Explanation != "" {
		text += "\n\n💡 " + q.Explanation
	}
	return text
}

func bandLabel(b quiz.Band) string {
	switch b {
	case quiz.BandExcellent:
		return "🌟 Excellent!"
	case quiz.BandVeryGood:
		return "👏 Very good!"
	case quiz.BandGood:
		return "👍 Good"
	default:
		return "📚 Needs review"
	}
}

func resultsText(r quiz.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏁 Quiz finished: %s\n", r.Title)
	switch r.Reason {
	case quiz.FinishTimeUp:
		sb.WriteString("⏰ The time limit was reached.\n")
	case quiz.FinishEnded:
		sb.WriteString("🛑 Ended early.\n")
	}

	fmt.Fprintf(&sb, "\n✅ Correct: %d\n❌ Wrong: %d\n⏭ Skipped: %d\n⏰ Timed out: %d\n",
		r.Correct, r.Wrong, r.Skipped, r.TimedOut)
	if r.NotReached > 0 {
		fmt.Fprintf(&sb, "⏸ Not reached: %d\n", r.NotReached)
	}
	if r.Errors > 0 {
		fmt.Fprintf(&sb, "⚠️ Not shown because of errors: %d\n", r.Errors)
	}
	fmt.Fprintf(&sb, "\n🎯 Score: %d/%d (%.1f%%)\n%s\n⏱ Time: %s\n",
		r.Correct, r.Total, r.Percentage, bandLabel(r.Band), formatDuration(r.Elapsed))

	if len(r.Achievements) > 0 {
		sb.WriteString("\n🏅 Achievements:\n")
		for _, a := range r.Achievements {
			sb.WriteString(a.Title)
			sb.WriteString("\n")
		}
	}

	if len(r.Review) > 0 {
		sb.WriteString("\n📋 Review:\n")
		for i, item := range r.Review {
			writeReviewItem(&sb, i+1, item)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeReviewItem(sb *strings.Builder, n int, item quiz.ReviewItem) {
	q, o := item.Question, item.Outcome
	var mark string
	switch {
	case o.Correct:
		mark = "✅"
	case o.Status == models.StatusAnswered:
		mark = "❌"
	case o.Status == models.StatusSkipped:
		mark = "⏭"
	case o.Status == models.StatusTimedOut:
		mark = "⏰"
	case o.Status == models.StatusNotReached:
		mark = "⏸"
	default:
		mark = "⚠️"
	}
	fmt.Fprintf(sb, "\n%d. %s %s\n", n, mark, q.Text)
	if o.Correct {
		return
	}
	if o.Selected != nil && *o.Selected >= 0 && *o.Selected < len(q.Options) {
		fmt.Fprintf(sb, "   Your answer: %s\n", q.Options[*o.Selected])
	}
	if correct := q.CorrectOption(); correct != "" {
		fmt.Fprintf(sb, "   Correct answer: %s\n", correct)
	}
	if q.Explanation != "" {
		fmt.Fprintf(sb, "   💡 %s\n", q.Explanation)
	}
}

func displayName(username, firstName string, telegramID int64) string {
	switch {
	case username != "":
		return "@" + username
	case firstName != "":
		return firstName
	default:
		return fmt.Sprintf("user %d", telegramID)
	}
}

func statsText(stats *models.UserStats, board []models.LeaderboardEntry, viewerID int64) string {
	var sb strings.Builder
	sb.WriteString("📊 Your statistics\n\n")
	if stats == nil || stats.Quizzes == 0 {
		sb.WriteString("You haven't finished any quizzes yet. Start one with /quiz!\n")
	} else {
		fmt.Fprintf(&sb, "📝 Quizzes completed: %d\n", stats.Quizzes)
		fmt.Fprintf(&sb, "🎯 Average score: %.1f%%\n", stats.AveragePercentage)
		fmt.Fprintf(&sb, "🏆 Best score: %.1f%%\n", stats.BestPercentage)
		fmt.Fprintf(&sb, "✅ Correct answers: %d/%d\n", stats.TotalCorrect, stats.TotalQuestions)
	}

	if len(board) > 0 {
		sb.WriteString("\n🏅 Leaderboard\n")
		for i, e := range board {
			marker := ""
			if e.TelegramID == viewerID {
				marker = " 👈"
			}
			fmt.Fprintf(&sb, "%d. %s - %.1f%% (%d quizzes)%s\n",
				i+1, displayName(e.Username, e.FirstName, e.TelegramID), e.AveragePercentage, e.Quizzes, marker)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func systemStatsText(o *models.OverallStats, activeQuizzes int) string {
	var sb strings.Builder
	sb.WriteString("🛠 Admin panel\n\n")
	fmt.Fprintf(&sb, "👥 Users: %d\n", o.TotalUsers)
	fmt.Fprintf(&sb, "❓ Questions: %d\n", o.TotalQuestions)
	fmt.Fprintf(&sb, "🧪 Quizzes running now: %d\n", activeQuizzes)
	sb.WriteString("\nLast 7 days:\n")
	fmt.Fprintf(&sb, "🆕 New users: %d\n", o.NewUsers)
	fmt.Fprintf(&sb, "🙋 Active users: %d\n", o.ActiveUsers)
	fmt.Fprintf(&sb, "📝 Quizzes: %d started, %d completed\n", o.TotalQuizzes, o.CompletedQuizzes)
	fmt.Fprintf(&sb, "🎯 Average score: %.1f%%", o.AveragePercentage)
	return sb.String()
}

func blockedListText(list []models.BlockedUser) string {
	if len(list) == 0 {
		return "✅ No blocked users."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "🚫 Blocked users (%d):\n", len(list))
	for _, u := range list {
		fmt.Fprintf(&sb, "\n• %d - %s\n  by %d on %s", u.UserID, u.Reason, u.BlockedBy, u.BlockedAt.Format("2006-01-02 15:04"))
	}
	return sb.String()
}

func reportStatusText(st report.Status, next time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	const layout = "2006-01-02 15:04 MST"
	var sb strings.Builder
	sb.WriteString("📈 Report status\n\n")
	if next.IsZero() {
		sb.WriteString("🗓 Weekly report: not scheduled\n")
	} else {
		fmt.Fprintf(&sb, "🗓 Next weekly report: %s\n", next.In(loc).Format(layout))
	}
	if st.Running {
		sb.WriteString("⏳ A report is being generated right now\n")
	}
	if st.LastRun.IsZero() {
		sb.WriteString("🕑 Last run: never\n")
	} else {
		fmt.Fprintf(&sb, "🕑 Last run: %s\n", st.LastRun.In(loc).Format(layout))
		if st.LastError != "" {
			fmt.Fprintf(&sb, "❌ Last result: failed (%s)\n", st.LastError)
		} else {
			fmt.Fprintf(&sb, "✅ Last result: %s\n", filepath.Base(st.LastFile))
		}
	}
	if st.EmailEnabled {
		sb.WriteString("📧 Email delivery: enabled")
	} else {
		sb.WriteString("📧 Email delivery: disabled")
	}
	return sb.String()
}

func importResultText(r *excel.ImportResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Questions processed: %d\n- Added: %d\n- Updated: %d\n- Skipped: %d",
		r.TotalProcessed, r.Created, r.Updated, r.Skipped)
	if len(r.Errors) > 0 {
		fmt.Fprintf(&sb, "\n\n❌ Errors (%d):", len(r.Errors))
		for i, e := range r.Errors {
			if i == maxImportErrs {
				fmt.Fprintf(&sb, "\n... and %d more", len(r.Errors)-maxImportErrs)
				break
			}
			sb.WriteString("\n- " + e)
		}
	}
	return sb.String()
}

func analyticsText(data *report.Data) string {
	var sb strings.Builder
	sb.WriteString(report.Summary(data))

	if len(data.Users) > 0 {
		sb.WriteString("\n🏅 Top users:\n")
		for i, u := range data.Users {
			if i == 5 {
				break
			}
			fmt.Fprintf(&sb, "%d. %s - %.1f%% (%d quizzes)\n",
				i+1, displayName(u.Username, u.FirstName, u.TelegramID), u.AveragePercentage, u.Quizzes)
		}
	}
	if len(data.Grades) > 0 {
		sb.WriteString("\n🎓 Grades:\n")
		for _, g := range data.Grades {
			fmt.Fprintf(&sb, "• %s: %.1f%% of %d answers\n", g.GradeName, g.SuccessRate(), g.Attempts)
		}
	}
	if len(data.Difficult) > 0 {
		sb.WriteString("\n⚠️ Hardest questions:\n")
		for i, q := range data.Difficult {
			if i == 5 {
				break
			}
			fmt.Fprintf(&sb, "• %s (%.1f%%, %s)\n", truncate(q.Text, 80), q.SuccessRate(), q.Difficulty())
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// splitMessage cuts text into chunks of at most limit runes, preferring line breaks
func splitMessage(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
		size   int
	)
	flush := func() {
		if chunk := strings.TrimRight(cur.String(), "\n"); chunk != "" {
			chunks = append(chunks, chunk)
		}
		cur.Reset()
		size = 0
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if size+n > limit {
			flush()
		}
		for n > limit {
			r := []rune(line)
			chunks = append(chunks, string(r[:limit]))
			line = string(r[limit:])
			n -= limit
		}
		cur.WriteString(line)
		size += n
	}
	flush()
	return chunks
}

// truncate shortens s to at most limit runes
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}
