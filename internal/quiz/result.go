package quiz

import (
	"time"

	"github.com/example/chembot/pkg/models"
)

// FinishReason tells why a quiz ended
type FinishReason string

const (
	FinishCompleted FinishReason = "completed"
	FinishTimeUp    FinishReason = "time_up"
	FinishEnded     FinishReason = "ended_by_user"
)

// Band is the qualitative grade of a percentage score
type Band string

const (
	BandExcellent   Band = "excellent"
	BandVeryGood    Band = "very good"
	BandGood        Band = "good"
	BandNeedsReview Band = "needs review"
)

// BandFor classifies a percentage: >=90 excellent, >=75 very good, >=50 good, else needs review
func BandFor(percentage float64) Band {
	switch {
	case percentage >= 90:
		return BandExcellent
	case percentage >= 75:
		return BandVeryGood
	case percentage >= 50:
		return BandGood
	default:
		return BandNeedsReview
	}
}

// ReviewItem pairs a question with how the user resolved it
type ReviewItem struct {
	Question models.Question
	Outcome  Outcome
}

// Result is the summary shown when a quiz ends
type Result struct {
	QuizID       string
	UserID       int64
	Title        string
	Type         models.QuizType
	ScopeID      int64
	Duration     time.Duration
	Reason       FinishReason
	Total        int
	Correct      int
	Wrong        int
	Skipped      int
	TimedOut     int
	Errors       int
	NotReached   int
	Percentage   float64
	Band         Band
	Elapsed      time.Duration
	Achievements []Achievement
	Review       []ReviewItem
}

func buildResult(s *Session, reason FinishReason, now time.Time) Result {
	r := Result{
		QuizID:   s.QuizID,
		UserID:   s.UserID,
		Title:    s.Title,
		Type:     s.Type,
		ScopeID:  s.ScopeID,
		Duration: s.Duration,
		Reason:   reason,
		Total:    len(s.Questions),
		Correct:  s.Score,
		Elapsed:  now.Sub(s.StartedAt),
	}

	byID := make(map[int64]models.Question, len(s.Questions))
	for _, pq := range s.Questions {
		byID[pq.Question.ID] = pq.Question
	}
	for _, o := range s.Outcomes {
		switch o.Status {
		case models.StatusAnswered:
			if !o.Correct {
				r.Wrong++
			}
		case models.StatusSkipped:
			r.Skipped++
		case models.StatusTimedOut:
			r.TimedOut++
		default:
			r.Errors++
		}
		r.Review = append(r.Review, ReviewItem{Question: byID[o.QuestionID], Outcome: o})
	}
	for i := len(s.Outcomes); i < len(s.Questions); i++ {
		q := s.Questions[i].Question
		r.NotReached++
		r.Review = append(r.Review, ReviewItem{
			Question: q,
			Outcome:  Outcome{QuestionID: q.ID, Status: models.StatusNotReached},
		})
	}

	r.Percentage = models.Rate(r.Correct, r.Total)
	r.Band = BandFor(r.Percentage)
	r.Achievements = Achievements(s.Outcomes, r.Percentage)
	return r
}

// Achievement is a badge earned in a single quiz
type Achievement struct {
	Key   string
	Title string
}

// Achievements evaluates the badges earned by a quiz with the given outcomes and score
func Achievements(outcomes []Outcome, percentage float64) []Achievement {
	var (
		earned   []Achievement
		answered int
		total    time.Duration
		streak   int
		best     int
		resolved int
	)
	for _, o := range outcomes {
		switch o.Status {
		case models.StatusAnswered, models.StatusSkipped, models.StatusTimedOut:
			resolved++
		}
		if o.Status == models.StatusAnswered {
			answered++
			total += o.Elapsed
		}
		if o.Correct {
			streak++
			if streak > best {
				best = streak
			}
		} else {
			streak = 0
		}
	}

	switch {
	case percentage == 100 && resolved >= 10:
		earned = append(earned, Achievement{Key: "perfect", Title: "🏆 Perfect score"})
	case percentage >= 90:
		earned = append(earned, Achievement{Key: "outstanding", Title: "🌟 Outstanding"})
	case percentage >= 80:
		earned = append(earned, Achievement{Key: "great", Title: "⭐ Great work"})
	case percentage >= 70:
		earned = append(earned, Achievement{Key: "good", Title: "👍 Good job"})
	}

	if answered >= 5 {
		avg := total / time.Duration(answered)
		switch {
		case avg < 10*time.Second:
			earned = append(earned, Achievement{Key: "lightning", Title: "⚡ Lightning fast"})
		case avg < 20*time.Second:
			earned = append(earned, Achievement{Key: "quick", Title: "🏃 Quick thinker"})
		}
	}

	switch {
	case best >= 10:
		earned = append(earned, Achievement{Key: "streak10", Title: "🔥 10 in a row"})
	case best >= 5:
		earned = append(earned, Achievement{Key: "streak5", Title: "🔥 5 in a row"})
	}

	if resolved >= 50 {
		earned = append(earned, Achievement{Key: "marathon", Title: "🏅 Marathon"})
	}
	return earned
}
