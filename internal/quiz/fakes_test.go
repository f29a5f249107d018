package quiz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/chembot/pkg/models"
)

// manualTimer is a callback that only runs when the test fires it
type manualTimer struct {
	sched   *manualScheduler
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{sched: m, d: d, f: f}
	m.timers = append(m.timers, t)
	return t
}

// pending returns the timers that are neither stopped nor fired
func (m *manualScheduler) pending() []*manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*manualTimer
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// pendingFor returns the single pending timer armed for d, or nil
func (m *manualScheduler) pendingFor(d time.Duration) *manualTimer {
	var found *manualTimer
	for _, t := range m.pending() {
		if t.d == d {
			found = t
		}
	}
	return found
}

// fire runs the timer's callback unless it was stopped
func (m *manualScheduler) fire(t *manualTimer) bool {
	m.mu.Lock()
	if t.stopped || t.fired {
		m.mu.Unlock()
		return false
	}
	t.fired = true
	m.mu.Unlock()
	t.f()
	return true
}

type fakePresenter struct {
	mu          sync.Mutex
	nextMsgID   int
	questions   []QuestionView
	feedback    []Feedback
	timedOut    []int64
	timeUp      int
	results     []Result
	noQuestions int
	failSend    map[int64]bool
}

func newFakePresenter() *fakePresenter {
	return &fakePresenter{nextMsgID: 100, failSend: make(map[int64]bool)}
}

func (p *fakePresenter) ShowQuestion(_ context.Context, v QuestionView) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failSend[v.Question.ID] {
		return 0, errors.New("telegram is down")
	}
	p.nextMsgID++
	p.questions = append(p.questions, v)
	return p.nextMsgID, nil
}

func (p *fakePresenter) ShowFeedback(_ context.Context, f Feedback) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feedback = append(p.feedback, f)
	return nil
}

func (p *fakePresenter) ShowQuestionTimedOut(_ context.Context, _ int64, _ int, q models.Question) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timedOut = append(p.timedOut, q.ID)
	return nil
}

func (p *fakePresenter) ShowTimeUp(context.Context, int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeUp++
	return nil
}

func (p *fakePresenter) ShowResults(_ context.Context, _ int64, r Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, r)
	return nil
}

func (p *fakePresenter) ShowNoQuestions(context.Context, int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.noQuestions++
	return nil
}

func (p *fakePresenter) lastQuestion() QuestionView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.questions[len(p.questions)-1]
}

// fakeSource returns the first n questions of its bank for every query
type fakeSource struct {
	bank  []models.Question
	calls []string
}

func (s *fakeSource) take(call string, n int) ([]models.Question, error) {
	s.calls = append(s.calls, call)
	if n <= 0 || n > len(s.bank) {
		n = len(s.bank)
	}
	return append([]models.Question(nil), s.bank[:n]...), nil
}

func (s *fakeSource) RandomQuestions(_ context.Context, n int) ([]models.Question, error) {
	return s.take("random", n)
}

func (s *fakeSource) QuestionsByChapter(_ context.Context, id int64, n int) ([]models.Question, error) {
	return s.take(fmt.Sprintf("chapter:%d", id), n)
}

func (s *fakeSource) QuestionsByLesson(_ context.Context, id int64, n int) ([]models.Question, error) {
	return s.take(fmt.Sprintf("lesson:%d", id), n)
}

func (s *fakeSource) QuestionsByGrade(_ context.Context, id int64, n int) ([]models.Question, error) {
	return s.take(fmt.Sprintf("grade:%d", id), n)
}

func (s *fakeSource) IncorrectQuestionsForUser(_ context.Context, userID int64, n int) ([]models.Question, error) {
	return s.take(fmt.Sprintf("review:%d", userID), n)
}

type answerKey struct {
	session  int64
	question int64
}

type fakeRecorder struct {
	mu         sync.Mutex
	sessions   []*models.QuizSession
	answers    map[answerKey]models.AnswerRecord
	writes     int
	finalized  map[int64]int
	abandoned  map[int64]int
	failCreate bool
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		answers:   make(map[answerKey]models.AnswerRecord),
		finalized: make(map[int64]int),
		abandoned: make(map[int64]int),
	}
}

func (r *fakeRecorder) CreateSession(_ context.Context, s *models.QuizSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return errors.New("database is locked")
	}
	s.ID = int64(len(r.sessions) + 1)
	cp := *s
	r.sessions = append(r.sessions, &cp)
	return nil
}

func (r *fakeRecorder) RecordAnswer(_ context.Context, a *models.AnswerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	r.answers[answerKey{a.SessionID, a.QuestionID}] = *a
	return nil
}

func (r *fakeRecorder) FinalizeSession(_ context.Context, id int64, correct, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalized[id]++
	s := r.sessions[id-1]
	s.CorrectCount = correct
	s.TotalQuestions = total
	s.Percentage = models.Rate(correct, total)
	return nil
}

func (r *fakeRecorder) AbandonSession(_ context.Context, id int64, _, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abandoned[id]++
	r.sessions[id-1].Abandoned = true
	return nil
}

func (r *fakeRecorder) answer(session, question int64) (models.AnswerRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.answers[answerKey{session, question}]
	return a, ok
}

// clock is a settable time source
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func makeQuestions(n int) []models.Question {
	qs := make([]models.Question, n)
	for i := range qs {
		qs[i] = models.Question{
			ID:           int64(i + 1),
			Text:         fmt.Sprintf("Question %d", i+1),
			Options:      models.Options{"H2O", "CO2", "NaCl", "O2"},
			CorrectIndex: 0,
			Explanation:  "Water is H2O",
		}
	}
	return qs
}

func noShuffle(int, func(i, j int)) {}

func reverseShuffle(n int, swap func(i, j int)) {
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}

func reversed(order []int) []int {
	out := make([]int, len(order))
	for i, v := range order {
		out[len(order)-1-i] = v
	}
	return out
}
