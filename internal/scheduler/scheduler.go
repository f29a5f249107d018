package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/example/chembot/internal/logger"
	"github.com/go-co-op/gocron"
)

const (
	// DefaultReportTime is when the weekly report is built on Sundays
	DefaultReportTime = "09:00"
	// DefaultSweepTime is when unfinished sessions are closed every day
	DefaultSweepTime = "03:00"
	// DefaultStaleAfter is how old an unfinished session must be to be closed
	DefaultStaleAfter = 24 * time.Hour

	jobTimeout = 10 * time.Minute
	reportTag  = "weekly-report"
	sweepTag   = "stale-sessions"
)

// ReportRunner builds and delivers the weekly report
type ReportRunner interface {
	RunWeekly(ctx context.Context) error
}

// SessionSweeper closes quiz sessions that were never finalized
type SessionSweeper interface {
	CloseStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler  *gocron.Scheduler
	reports    ReportRunner
	sweeper    SessionSweeper
	log        *logger.Logger
	staleAfter time.Duration
	now        func() time.Time
}

// New creates a scheduler running jobs in loc
func New(reports ReportRunner, sweeper SessionSweeper, loc *time.Location, log *logger.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.NewNop()
	}
	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:  s,
		reports:    reports,
		sweeper:    sweeper,
		log:        log.With("component", "scheduler"),
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
}

// Start registers the jobs and runs the scheduler in the background
func (s *Scheduler) Start() error {
	if s.reports != nil {
		if _, err := s.scheduler.Every(1).Sunday().At(DefaultReportTime).Tag(reportTag).Do(s.runReport); err != nil {
			return fmt.Errorf("failed to schedule weekly report: %w", err)
		}
	}
	if s.sweeper != nil {
		if _, err := s.scheduler.Every(1).Day().At(DefaultSweepTime).Tag(sweepTag).Do(s.sweep); err != nil {
			return fmt.Errorf("failed to schedule session sweep: %w", err)
		}
	}

	s.scheduler.StartAsync()
	s.log.Info("scheduler started", "jobs", len(s.scheduler.Jobs()), "next_report", s.NextReport())
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// NextReport returns when the weekly report runs next, zero if it is not scheduled
func (s *Scheduler) NextReport() time.Time {
	jobs, err := s.scheduler.FindJobsByTag(reportTag)
	if err != nil || len(jobs) == 0 {
		return time.Time{}
	}
	return jobs[0].NextRun()
}

func (s *Scheduler) runReport() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	s.log.Info("running weekly report")
	if err := s.reports.RunWeekly(ctx); err != nil {
		s.log.Error("weekly report failed", "error", err)
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	closed, err := s.sweeper.CloseStale(ctx, s.now().Add(-s.staleAfter))
	if err != nil {
		s.log.Error("failed to close stale sessions", "error", err)
		return
	}
	if closed > 0 {
		s.log.Info("closed stale sessions", "count", closed)
	}
}
