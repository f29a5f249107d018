package quiz

import (
	"time"

	"github.com/example/chembot/pkg/models"
)

// Request describes the quiz a user asked for
type Request struct {
	UserID   int64
	ChatID   int64
	Type     models.QuizType
	ScopeID  int64
	Title    string
	Count    int
	Duration time.Duration // 0 means no overall time limit
}

// PreparedQuestion is a question together with the order its options are shown in.
// Order holds stored option indexes, so answers always refer to the stored index.
type PreparedQuestion struct {
	Question models.Question `json:"question"`
	Order    []int           `json:"order"`
}

// Outcome is the in-memory log entry of one resolved question
type Outcome struct {
	QuestionID int64               `json:"question_id"`
	Selected   *int                `json:"selected,omitempty"`
	Correct    bool                `json:"correct"`
	Status     models.AnswerStatus `json:"status"`
	Elapsed    time.Duration       `json:"elapsed"`
}

// Session is the live state of one user's quiz. Timer tokens are unexported,
// so they never end up in a snapshot.
type Session struct {
	QuizID          string             `json:"quiz_id"`
	RecordID        int64              `json:"record_id"`
	UserID          int64              `json:"user_id"`
	ChatID          int64              `json:"chat_id"`
	Type            models.QuizType    `json:"type"`
	ScopeID         int64              `json:"scope_id"`
	Title           string             `json:"title"`
	Questions       []PreparedQuestion `json:"questions"`
	Index           int                `json:"index"`
	Score           int                `json:"score"`
	Outcomes        []Outcome          `json:"outcomes"`
	StartedAt       time.Time          `json:"started_at"`
	Duration        time.Duration      `json:"duration"`
	QuestionShownAt time.Time          `json:"question_shown_at"`
	MessageID       int                `json:"message_id"`
	AwaitingAdvance bool               `json:"awaiting_advance"`

	questionTimer Timer
	quizTimer     Timer
	advanceTimer  Timer
	done          bool
}

// Current returns the question at the current index
func (s *Session) Current() (PreparedQuestion, bool) {
	if s.Index < 0 || s.Index >= len(s.Questions) {
		return PreparedQuestion{}, false
	}
	return s.Questions[s.Index], true
}

// Deadline returns when the quiz timer expires. ok is false for quizzes without a time limit.
func (s *Session) Deadline() (deadline time.Time, ok bool) {
	if s.Duration <= 0 {
		return time.Time{}, false
	}
	return s.StartedAt.Add(s.Duration), true
}

func (s *Session) stopTimers() {
	stopTimer(&s.questionTimer)
	stopTimer(&s.quizTimer)
	stopTimer(&s.advanceTimer)
}
