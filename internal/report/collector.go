package report

import (
	"context"
	"time"

	"github.com/example/chembot/pkg/models"
	"golang.org/x/sync/errgroup"
)

const (
	// questions need this many attempts before they can count as difficult
	difficultMinAttempts = 5
	// success rate in percent below which a question is difficult
	difficultMaxRate = 70
)

// StatsSource is the subset of the statistics repository used by reports
type StatsSource interface {
	Overall(ctx context.Context, from, to time.Time) (*models.OverallStats, error)
	UserProgress(ctx context.Context, from, to time.Time) ([]models.UserProgress, error)
	GradePerformance(ctx context.Context, from, to time.Time) ([]models.GradePerformance, error)
	DifficultQuestions(ctx context.Context, from, to time.Time, minAttempts int, maxRate float64) ([]models.DifficultQuestion, error)
	HourlyActivity(ctx context.Context, from, to time.Time, loc *time.Location) ([]models.HourActivity, error)
}

// Data is everything a report shows for the period [From, To)
type Data struct {
	From      time.Time
	To        time.Time
	Location  *time.Location
	Overall   models.OverallStats
	Users     []models.UserProgress
	Grades    []models.GradePerformance
	Difficult []models.DifficultQuestion
	Activity  []models.HourActivity
}

// Collect runs the report queries concurrently
func Collect(ctx context.Context, stats StatsSource, from, to time.Time, loc *time.Location) (*Data, error) {
	if loc == nil {
		loc = time.UTC
	}
	data := &Data{From: from, To: to, Location: loc}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		overall, err := stats.Overall(gctx, from, to)
		if err != nil {
			return err
		}
		data.Overall = *overall
		return nil
	})
	g.Go(func() error {
		users, err := stats.UserProgress(gctx, from, to)
		data.Users = users
		return err
	})
	g.Go(func() error {
		grades, err := stats.GradePerformance(gctx, from, to)
		data.Grades = grades
		return err
	})
	g.Go(func() error {
		difficult, err := stats.DifficultQuestions(gctx, from, to, difficultMinAttempts, difficultMaxRate)
		data.Difficult = difficult
		return err
	})
	g.Go(func() error {
		activity, err := stats.HourlyActivity(gctx, from, to, loc)
		data.Activity = activity
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}
