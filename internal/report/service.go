package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/example/chembot/internal/logger"
)

// ErrAlreadyRunning is returned when a report is requested while another one is being built
var ErrAlreadyRunning = errors.New("report generation already running")

// Notifier delivers a finished report file to the administrators
type Notifier interface {
	SendReport(ctx context.Context, path, caption string) error
}

// Status describes the last report run
type Status struct {
	Running      bool
	LastRun      time.Time
	LastFile     string
	LastError    string
	EmailEnabled bool
}

// Service builds, stores and delivers analytics reports
type Service struct {
	stats    StatsSource
	dir      string
	loc      *time.Location
	mailer   Mailer
	notifier Notifier
	log      *logger.Logger
	now      func() time.Time

	mu     sync.Mutex
	status Status
}

// NewService creates a report service. mailer may be nil when email is not configured.
func NewService(stats StatsSource, dir string, loc *time.Location, mailer Mailer, log *logger.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		stats:  stats,
		dir:    dir,
		loc:    loc,
		mailer: mailer,
		log:    log.With("component", "report"),
		now:    time.Now,
		status: Status{EmailEnabled: mailer != nil},
	}
}

// SetNotifier sets where finished reports are sent besides email
func (s *Service) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Location returns the time zone reports are computed in
func (s *Service) Location() *time.Location {
	return s.loc
}

// Status returns a copy of the current status
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// WeekRange returns the seven whole days before the day of now in loc
func WeekRange(now time.Time, loc *time.Location) (from, to time.Time) {
	local := now.In(loc)
	to = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return to.AddDate(0, 0, -7), to
}

// RunWeekly builds and delivers the report of the last seven days
func (s *Service) RunWeekly(ctx context.Context) error {
	from, to := WeekRange(s.now(), s.loc)
	_, err := s.Run(ctx, from, to)
	return err
}

// Run builds the report of [from, to), saves it and delivers it.
// Delivery failures are logged, the saved file path is still returned.
func (s *Service) Run(ctx context.Context, from, to time.Time) (string, error) {
	s.mu.Lock()
	if s.status.Running {
		s.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	s.status.Running = true
	notifier := s.notifier
	s.mu.Unlock()

	path, data, err := s.Generate(ctx, from, to)
	if err == nil {
		s.deliver(ctx, notifier, path, data)
	}

	s.mu.Lock()
	s.status.Running = false
	s.status.LastRun = s.now()
	s.status.LastFile = path
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("report generation failed", "from", from, "to", to, "error", err)
		return "", err
	}
	s.log.Info("report generated", "file", path)
	return path, nil
}

// Generate collects the data of [from, to) and saves the workbook in the reports directory
func (s *Service) Generate(ctx context.Context, from, to time.Time) (string, *Data, error) {
	data, err := Collect(ctx, s.stats, from, to, s.loc)
	if err != nil {
		return "", nil, fmt.Errorf("failed to collect report data: %w", err)
	}

	f, err := Workbook(data)
	if err != nil {
		return "", nil, fmt.Errorf("failed to build report workbook: %w", err)
	}
	defer f.Close()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", nil, fmt.Errorf("failed to create reports directory: %w", err)
	}
	path := filepath.Join(s.dir, FileName(data))
	if err := f.SaveAs(path); err != nil {
		return "", nil, fmt.Errorf("failed to save report: %w", err)
	}
	return path, data, nil
}

// Analytics collects the report data without building a file
func (s *Service) Analytics(ctx context.Context, from, to time.Time) (*Data, error) {
	return Collect(ctx, s.stats, from, to, s.loc)
}

func (s *Service) deliver(ctx context.Context, notifier Notifier, path string, data *Data) {
	caption := Summary(data)
	if s.mailer != nil {
		subject := "Chemistry bot report " + periodLabel(data)
		if err := s.mailer.Send(subject, caption, path); err != nil {
			s.log.Error("failed to email report", "error", err)
		}
	}
	if notifier != nil {
		if err := notifier.SendReport(ctx, path, caption); err != nil {
			s.log.Error("failed to send report to admins", "error", err)
		}
	}
}

// FileName returns the name of the report file for the period of data
func FileName(data *Data) string {
	return "chemistry_report_" + strings.ReplaceAll(periodLabel(data), " - ", "_") + ".xlsx"
}

// periodLabel formats the period with an inclusive end date
func periodLabel(data *Data) string {
	loc := data.Location
	if loc == nil {
		loc = time.UTC
	}
	last := data.To.In(loc).AddDate(0, 0, -1)
	if !last.After(data.From.In(loc)) {
		last = data.From.In(loc)
	}
	return data.From.In(loc).Format(dateLayout) + " - " + last.Format(dateLayout)
}

// Summary renders the headline numbers of a report as plain text
func Summary(data *Data) string {
	o := data.Overall
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Report %s\n\n", periodLabel(data))
	fmt.Fprintf(&sb, "👥 Users: %d (new: %d, active: %d)\n", o.TotalUsers, o.NewUsers, o.ActiveUsers)
	fmt.Fprintf(&sb, "📝 Quizzes: %d started, %d completed\n", o.TotalQuizzes, o.CompletedQuizzes)
	fmt.Fprintf(&sb, "🎯 Average score: %.1f%%\n", o.AveragePercentage)
	fmt.Fprintf(&sb, "⏱ Average time: %.1f min\n", o.AverageTimeSeconds/60)
	fmt.Fprintf(&sb, "✅ Answers: %d (%d correct)\n", o.TotalAnswers, o.CorrectAnswers)
	fmt.Fprintf(&sb, "❓ Questions in bank: %d\n", o.TotalQuestions)
	if len(data.Difficult) > 0 {
		fmt.Fprintf(&sb, "⚠️ Difficult questions: %d\n", len(data.Difficult))
	}
	return sb.String()
}
