package models

import "time"

// QuizType identifies where the questions of a quiz are drawn from
type QuizType string

const (
	QuizRandom  QuizType = "random"
	QuizChapter QuizType = "chapter"
	QuizLesson  QuizType = "lesson"
	QuizGrade   QuizType = "grade"
	QuizReview  QuizType = "review"
)

// NeedsScope reports whether the quiz type is filtered by a curriculum id
func (t QuizType) NeedsScope() bool {
	return t == QuizChapter || t == QuizLesson || t == QuizGrade
}

// QuizSession is one persisted quiz attempt
type QuizSession struct {
	ID               int64      `json:"id" db:"id"`
	QuizUID          string     `json:"quiz_uid" db:"quiz_uid"`
	UserID           int64      `json:"user_id" db:"user_id"`
	QuizType         QuizType   `json:"quiz_type" db:"quiz_type"`
	ScopeID          int64      `json:"scope_id" db:"scope_id"`
	Title            string     `json:"title" db:"title"`
	DurationMinutes  int        `json:"duration_minutes" db:"duration_minutes"`
	TotalQuestions   int        `json:"total_questions" db:"total_questions"`
	CorrectCount     int        `json:"correct_count" db:"correct_count"`
	Percentage       float64    `json:"percentage" db:"percentage"`
	TimeTakenSeconds int        `json:"time_taken_seconds" db:"time_taken_seconds"`
	StartTime        time.Time  `json:"start_time" db:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty" db:"end_time"`
	Abandoned        bool       `json:"abandoned" db:"abandoned"`
}

// Finished reports whether the session has been finalized
func (s QuizSession) Finished() bool {
	return s.EndTime != nil
}

// AnswerStatus describes how a question of a session was resolved
type AnswerStatus string

const (
	StatusAnswered     AnswerStatus = "answered"
	StatusSkipped      AnswerStatus = "skipped"
	StatusTimedOut     AnswerStatus = "timed_out"
	StatusErrorSkipped AnswerStatus = "error_skipped"
	StatusErrorSending AnswerStatus = "error_sending"
	// StatusNotReached is never stored, it marks questions left when a quiz ends early
	StatusNotReached AnswerStatus = "not_reached"
)

// AnswerRecord is one resolved question of a session.
// SelectedOption is nil unless the user picked an option.
type AnswerRecord struct {
	ID             int64        `json:"id" db:"id"`
	SessionID      int64        `json:"session_id" db:"session_id"`
	UserID         int64        `json:"user_id" db:"user_id"`
	QuestionID     int64        `json:"question_id" db:"question_id"`
	SelectedOption *int         `json:"selected_option,omitempty" db:"selected_option"`
	IsCorrect      bool         `json:"is_correct" db:"is_correct"`
	Status         AnswerStatus `json:"status" db:"status"`
	AnsweredAt     time.Time    `json:"answered_at" db:"answered_at"`
}
