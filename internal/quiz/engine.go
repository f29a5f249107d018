package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/chembot/internal/logger"
	"github.com/example/chembot/pkg/models"
	"github.com/google/uuid"
)

var (
	// ErrNoQuestions is returned by Start when the filter matches no questions
	ErrNoQuestions = errors.New("no questions available")
	// ErrNoActiveQuiz is returned when the user has no running quiz
	ErrNoActiveQuiz = errors.New("no active quiz")
	// ErrStaleAnswer is returned for answers to a question that is no longer current
	ErrStaleAnswer = errors.New("stale answer")
)

// QuestionSource is the question bank
type QuestionSource interface {
	RandomQuestions(ctx context.Context, n int) ([]models.Question, error)
	QuestionsByChapter(ctx context.Context, chapterID int64, n int) ([]models.Question, error)
	QuestionsByLesson(ctx context.Context, lessonID int64, n int) ([]models.Question, error)
	QuestionsByGrade(ctx context.Context, gradeID int64, n int) ([]models.Question, error)
	IncorrectQuestionsForUser(ctx context.Context, userID int64, limit int) ([]models.Question, error)
}

// Recorder persists sessions and answers
type Recorder interface {
	CreateSession(ctx context.Context, s *models.QuizSession) error
	RecordAnswer(ctx context.Context, a *models.AnswerRecord) error
	FinalizeSession(ctx context.Context, id int64, correct, total int) error
	AbandonSession(ctx context.Context, id int64, correct, total int) error
}

// QuestionView is everything needed to render a question
type QuestionView struct {
	ChatID    int64
	QuizID    string
	Number    int // 1-based
	Total     int
	Question  models.Question
	Order     []int
	TimeLimit time.Duration
	// QuizLeft is the remaining overall budget, 0 for untimed quizzes
	QuizLeft time.Duration
}

// Feedback describes the reaction to an answer
type Feedback struct {
	ChatID    int64
	MessageID int
	Question  models.Question
	Selected  int
	Correct   bool
}

// Presenter renders quiz events to the user
type Presenter interface {
	ShowQuestion(ctx context.Context, v QuestionView) (messageID int, err error)
	ShowFeedback(ctx context.Context, f Feedback) error
	ShowQuestionTimedOut(ctx context.Context, chatID int64, messageID int, q models.Question) error
	ShowTimeUp(ctx context.Context, chatID int64) error
	ShowResults(ctx context.Context, chatID int64, r Result) error
	ShowNoQuestions(ctx context.Context, chatID int64) error
}

// Config holds the quiz timing knobs
type Config struct {
	QuestionTimeout time.Duration
	FeedbackDelay   time.Duration
}

// DefaultConfig returns the default quiz timing
func DefaultConfig() Config {
	return Config{
		QuestionTimeout: 240 * time.Second,
		FeedbackDelay:   2 * time.Second,
	}
}

// Engine runs quizzes: it sequences questions, scores answers and owns the timers
type Engine struct {
	cfg       Config
	questions QuestionSource
	recorder  Recorder
	presenter Presenter
	timers    Scheduler
	snapshots SnapshotStore
	store     *SessionStore
	log       *logger.Logger

	now     func() time.Time
	newID   func() string
	shuffle ShuffleFunc // nil means rand.Shuffle
}

// Deps are the collaborators of an Engine. Snapshots may be nil.
type Deps struct {
	Questions QuestionSource
	Recorder  Recorder
	Presenter Presenter
	Timers    Scheduler
	Snapshots SnapshotStore
	Logger    *logger.Logger
}

// NewEngine creates an engine
func NewEngine(cfg Config, deps Deps) *Engine {
	if deps.Timers == nil {
		deps.Timers = RealScheduler{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	return &Engine{
		cfg:       cfg,
		questions: deps.Questions,
		recorder:  deps.Recorder,
		presenter: deps.Presenter,
		timers:    deps.Timers,
		snapshots: deps.Snapshots,
		store:     NewSessionStore(),
		log:       deps.Logger.With("component", "quiz"),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.NewString() },
	}
}

// Current returns a copy of the user's live session
func (e *Engine) Current(userID int64) (Session, bool) {
	return e.store.Get(userID)
}

// ActiveUsers returns the ids of users with a running quiz
func (e *Engine) ActiveUsers() []int64 {
	return e.store.Users()
}

// Start begins a new quiz. A quiz already running for the user is abandoned.
func (e *Engine) Start(ctx context.Context, req Request) error {
	questions, err := e.fetch(ctx, req)
	if err != nil {
		return err
	}
	prepared := Prepare(questions, req.Count, e.shuffle)
	if len(prepared) == 0 {
		if err := e.presenter.ShowNoQuestions(ctx, req.ChatID); err != nil {
			e.log.Warn("failed to show no-questions notice", "user_id", req.UserID, "error", err)
		}
		return ErrNoQuestions
	}

	e.mutate(ctx, req.UserID, func(cur *Session) *Session {
		if cur != nil {
			e.abandon(ctx, cur)
		}

		s := &Session{
			QuizID:    e.newID(),
			UserID:    req.UserID,
			ChatID:    req.ChatID,
			Type:      req.Type,
			ScopeID:   req.ScopeID,
			Title:     req.Title,
			Questions: prepared,
			StartedAt: e.now(),
			Duration:  req.Duration,
		}
		if s.Title == "" {
			s.Title = defaultTitle(req.Type)
		}

		rec := &models.QuizSession{
			QuizUID:         s.QuizID,
			UserID:          s.UserID,
			QuizType:        s.Type,
			ScopeID:         s.ScopeID,
			Title:           s.Title,
			DurationMinutes: int(s.Duration / time.Minute),
			TotalQuestions:  len(s.Questions),
			StartTime:       s.StartedAt,
		}
		if err := e.recorder.CreateSession(ctx, rec); err != nil {
			e.log.Error("failed to create quiz session record", "user_id", s.UserID, "quiz_id", s.QuizID, "error", err)
		} else {
			s.RecordID = rec.ID
		}

		e.log.Info("quiz started", "user_id", s.UserID, "quiz_id", s.QuizID, "type", s.Type,
			"questions", len(s.Questions), "duration", s.Duration)

		if s.Duration > 0 {
			s.quizTimer = e.timers.AfterFunc(s.Duration, e.onQuizTimeout(s.UserID, s.QuizID))
		}
		e.present(ctx, s)
		return e.keep(s)
	})
	return nil
}

func (e *Engine) fetch(ctx context.Context, req Request) ([]models.Question, error) {
	var (
		questions []models.Question
		err       error
	)
	switch req.Type {
	case models.QuizRandom:
		questions, err = e.questions.RandomQuestions(ctx, req.Count)
	case models.QuizChapter:
		questions, err = e.questions.QuestionsByChapter(ctx, req.ScopeID, req.Count)
	case models.QuizLesson:
		questions, err = e.questions.QuestionsByLesson(ctx, req.ScopeID, req.Count)
	case models.QuizGrade:
		questions, err = e.questions.QuestionsByGrade(ctx, req.ScopeID, req.Count)
	case models.QuizReview:
		questions, err = e.questions.IncorrectQuestionsForUser(ctx, req.UserID, req.Count)
	default:
		return nil, fmt.Errorf("unknown quiz type %q", req.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	return questions, nil
}

// Answer applies the user's choice for a question. option is a stored option index.
func (e *Engine) Answer(ctx context.Context, userID, questionID int64, option int) error {
	var result error
	e.mutate(ctx, userID, func(s *Session) *Session {
		if s == nil {
			result = ErrNoActiveQuiz
			return nil
		}
		pq, ok := s.Current()
		if !ok || s.AwaitingAdvance || pq.Question.ID != questionID || !validOption(pq.Question, option) {
			result = ErrStaleAnswer
			return s
		}

		stopTimer(&s.questionTimer)
		correct := option == pq.Question.CorrectIndex
		selected := option
		e.resolve(ctx, s, pq, &selected, correct, models.StatusAnswered)
		if correct {
			s.Score++
		}

		err := e.presenter.ShowFeedback(ctx, Feedback{
			ChatID:    s.ChatID,
			MessageID: s.MessageID,
			Question:  pq.Question,
			Selected:  option,
			Correct:   correct,
		})
		if err != nil {
			e.log.Warn("failed to show feedback", "user_id", userID, "error", err)
		}

		s.Index++
		if s.Index >= len(s.Questions) {
			e.finish(ctx, s, FinishCompleted)
			return e.keep(s)
		}
		s.AwaitingAdvance = true
		s.advanceTimer = e.timers.AfterFunc(e.cfg.FeedbackDelay, e.onAdvance(userID, s.QuizID, s.Index))
		return s
	})
	return result
}

// Skip moves past the current question without answering it
func (e *Engine) Skip(ctx context.Context, userID, questionID int64) error {
	var result error
	e.mutate(ctx, userID, func(s *Session) *Session {
		if s == nil {
			result = ErrNoActiveQuiz
			return nil
		}
		pq, ok := s.Current()
		if !ok || s.AwaitingAdvance || pq.Question.ID != questionID {
			result = ErrStaleAnswer
			return s
		}
		stopTimer(&s.questionTimer)
		e.resolve(ctx, s, pq, nil, false, models.StatusSkipped)
		s.Index++
		e.present(ctx, s)
		return e.keep(s)
	})
	return result
}

// End finishes the user's quiz early and shows the results
func (e *Engine) End(ctx context.Context, userID int64) error {
	var result error
	e.mutate(ctx, userID, func(s *Session) *Session {
		if s == nil {
			result = ErrNoActiveQuiz
			return nil
		}
		e.finish(ctx, s, FinishEnded)
		return e.keep(s)
	})
	return result
}

// Cancel silently abandons the user's quiz. It reports whether a quiz was running.
func (e *Engine) Cancel(ctx context.Context, userID int64) bool {
	cancelled := false
	e.mutate(ctx, userID, func(s *Session) *Session {
		if s == nil {
			return nil
		}
		e.abandon(ctx, s)
		cancelled = true
		return nil
	})
	return cancelled
}

// Shutdown stops every timer. Sessions and their snapshots are kept for Recover.
func (e *Engine) Shutdown() {
	for _, userID := range e.store.Users() {
		e.store.Update(userID, func(s *Session) *Session {
			if s != nil {
				s.stopTimers()
			}
			return s
		})
	}
}

// Recover resumes the quizzes found in the snapshot store. Quizzes whose time
// budget ran out while the process was down are finalized right away.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	if e.snapshots == nil {
		return 0, nil
	}
	snaps, err := e.snapshots.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load quiz snapshots: %w", err)
	}

	resumed := 0
	for _, snap := range snaps {
		e.mutate(ctx, snap.UserID, func(cur *Session) *Session {
			if cur != nil {
				return cur
			}
			if deadline, ok := snap.Deadline(); ok {
				remaining := deadline.Sub(e.now())
				if remaining <= 0 {
					e.log.Info("quiz expired while offline", "user_id", snap.UserID, "quiz_id", snap.QuizID)
					e.finish(ctx, snap, FinishTimeUp)
					return e.keep(snap)
				}
				snap.quizTimer = e.timers.AfterFunc(remaining, e.onQuizTimeout(snap.UserID, snap.QuizID))
			}
			snap.AwaitingAdvance = false
			// the question is sent again, so it gets a fresh option order. Buttons carry
			// stored option indexes, so the old message still maps correctly.
			if snap.Index < len(snap.Questions) {
				q := &snap.Questions[snap.Index]
				q.Order = reshuffleOrder(q.Order, e.shuffle)
			}
			e.present(ctx, snap)
			if !snap.done {
				resumed++
			}
			return e.keep(snap)
		})
		// mutate only deletes snapshots of sessions it found in memory
		if _, ok := e.store.Get(snap.UserID); !ok {
			if err := e.snapshots.Delete(ctx, snap.UserID); err != nil {
				e.log.Warn("failed to delete quiz snapshot", "user_id", snap.UserID, "error", err)
			}
		}
	}
	return resumed, nil
}

// present shows the current question, auto-skipping broken ones, and finishes
// the quiz when no questions are left
func (e *Engine) present(ctx context.Context, s *Session) {
	for s.Index < len(s.Questions) {
		pq := s.Questions[s.Index]
		if pq.Question.ValidOptionCount() < 2 {
			e.log.Warn("question has fewer than two options, skipping",
				"question_id", pq.Question.ID, "quiz_id", s.QuizID)
			e.resolve(ctx, s, pq, nil, false, models.StatusErrorSkipped)
			s.Index++
			continue
		}

		view := QuestionView{
			ChatID:    s.ChatID,
			QuizID:    s.QuizID,
			Number:    s.Index + 1,
			Total:     len(s.Questions),
			Question:  pq.Question,
			Order:     pq.Order,
			TimeLimit: e.cfg.QuestionTimeout,
		}
		if deadline, ok := s.Deadline(); ok {
			view.QuizLeft = deadline.Sub(e.now())
		}

		msgID, err := e.presenter.ShowQuestion(ctx, view)
		if err != nil {
			e.log.Error("failed to send question", "question_id", pq.Question.ID, "user_id", s.UserID, "error", err)
			e.resolve(ctx, s, pq, nil, false, models.StatusErrorSending)
			s.Index++
			continue
		}

		s.MessageID = msgID
		s.QuestionShownAt = e.now()
		s.questionTimer = e.timers.AfterFunc(e.cfg.QuestionTimeout, e.onQuestionTimeout(s.UserID, s.QuizID, s.Index))
		return
	}
	e.finish(ctx, s, FinishCompleted)
}

// resolve logs the outcome of the current question and records it
func (e *Engine) resolve(ctx context.Context, s *Session, pq PreparedQuestion, selected *int, correct bool, status models.AnswerStatus) {
	var elapsed time.Duration
	if !s.QuestionShownAt.IsZero() && status != models.StatusErrorSkipped && status != models.StatusErrorSending {
		elapsed = e.now().Sub(s.QuestionShownAt)
	}
	s.Outcomes = append(s.Outcomes, Outcome{
		QuestionID: pq.Question.ID,
		Selected:   selected,
		Correct:    correct,
		Status:     status,
		Elapsed:    elapsed,
	})

	if s.RecordID == 0 {
		return
	}
	err := e.recorder.RecordAnswer(ctx, &models.AnswerRecord{
		SessionID:      s.RecordID,
		UserID:         s.UserID,
		QuestionID:     pq.Question.ID,
		SelectedOption: selected,
		IsCorrect:      correct,
		Status:         status,
		AnsweredAt:     e.now(),
	})
	if err != nil {
		e.log.Error("failed to record answer", "session_id", s.RecordID, "question_id", pq.Question.ID, "error", err)
	}
}

// finish closes the quiz and shows the results
func (e *Engine) finish(ctx context.Context, s *Session, reason FinishReason) {
	s.stopTimers()
	s.done = true
	res := buildResult(s, reason, e.now())

	if s.RecordID != 0 {
		if err := e.recorder.FinalizeSession(ctx, s.RecordID, s.Score, len(s.Questions)); err != nil {
			e.log.Error("failed to finalize quiz session", "session_id", s.RecordID, "error", err)
		}
	}
	e.log.Info("quiz finished", "user_id", s.UserID, "quiz_id", s.QuizID, "reason", reason,
		"score", s.Score, "total", len(s.Questions))

	if reason == FinishTimeUp {
		if err := e.presenter.ShowTimeUp(ctx, s.ChatID); err != nil {
			e.log.Warn("failed to send time-up notice", "user_id", s.UserID, "error", err)
		}
	}
	if err := e.presenter.ShowResults(ctx, s.ChatID, res); err != nil {
		e.log.Warn("failed to send results", "user_id", s.UserID, "error", err)
	}
}

// abandon closes a quiz without showing anything
func (e *Engine) abandon(ctx context.Context, s *Session) {
	s.stopTimers()
	s.done = true
	if s.RecordID != 0 {
		if err := e.recorder.AbandonSession(ctx, s.RecordID, s.Score, len(s.Questions)); err != nil {
			e.log.Error("failed to close abandoned quiz session", "session_id", s.RecordID, "error", err)
		}
	}
	e.log.Info("quiz abandoned", "user_id", s.UserID, "quiz_id", s.QuizID)
}

// keep returns s unless it has been finished
func (e *Engine) keep(s *Session) *Session {
	if s.done {
		return nil
	}
	return s
}

func (e *Engine) onQuestionTimeout(userID int64, quizID string, index int) func() {
	return func() {
		ctx := context.Background()
		e.mutate(ctx, userID, func(s *Session) *Session {
			if s == nil || s.QuizID != quizID || s.Index != index || s.AwaitingAdvance {
				return s
			}
			pq, _ := s.Current()
			s.questionTimer = nil
			e.resolve(ctx, s, pq, nil, false, models.StatusTimedOut)
			if err := e.presenter.ShowQuestionTimedOut(ctx, s.ChatID, s.MessageID, pq.Question); err != nil {
				e.log.Warn("failed to mark question as timed out", "user_id", userID, "error", err)
			}
			s.Index++
			e.present(ctx, s)
			return e.keep(s)
		})
	}
}

func (e *Engine) onQuizTimeout(userID int64, quizID string) func() {
	return func() {
		ctx := context.Background()
		e.mutate(ctx, userID, func(s *Session) *Session {
			if s == nil || s.QuizID != quizID {
				return s
			}
			s.quizTimer = nil
			e.finish(ctx, s, FinishTimeUp)
			return e.keep(s)
		})
	}
}

func (e *Engine) onAdvance(userID int64, quizID string, index int) func() {
	return func() {
		ctx := context.Background()
		e.mutate(ctx, userID, func(s *Session) *Session {
			if s == nil || s.QuizID != quizID || s.Index != index || !s.AwaitingAdvance {
				return s
			}
			s.advanceTimer = nil
			s.AwaitingAdvance = false
			e.present(ctx, s)
			return e.keep(s)
		})
	}
}

// mutate updates the user's session and mirrors the change into the snapshot store
func (e *Engine) mutate(ctx context.Context, userID int64, fn func(*Session) *Session) {
	e.store.Update(userID, func(cur *Session) *Session {
		next := fn(cur)
		if e.snapshots == nil {
			return next
		}
		switch {
		case next != nil:
			if err := e.snapshots.Save(ctx, next); err != nil {
				e.log.Warn("failed to save quiz snapshot", "user_id", userID, "error", err)
			}
		case cur != nil:
			if err := e.snapshots.Delete(ctx, userID); err != nil {
				e.log.Warn("failed to delete quiz snapshot", "user_id", userID, "error", err)
			}
		}
		return next
	})
}

func defaultTitle(t models.QuizType) string {
	switch t {
	case models.QuizChapter:
		return "Chapter quiz"
	case models.QuizLesson:
		return "Lesson quiz"
	case models.QuizGrade:
		return "Grade quiz"
	case models.QuizReview:
		return "Review of mistakes"
	default:
		return "Random quiz"
	}
}
