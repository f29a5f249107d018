package models

import "time"

// UserStats summarises the finished quizzes of one user
type UserStats struct {
	Quizzes           int     `json:"quizzes" db:"quizzes"`
	AveragePercentage float64 `json:"average_percentage" db:"average_percentage"`
	BestPercentage    float64 `json:"best_percentage" db:"best_percentage"`
	TotalCorrect      int     `json:"total_correct" db:"total_correct"`
	TotalQuestions    int     `json:"total_questions" db:"total_questions"`
}

// LeaderboardEntry is one row of the leaderboard
type LeaderboardEntry struct {
	TelegramID        int64   `json:"telegram_id" db:"telegram_id"`
	Username          string  `json:"username" db:"username"`
	FirstName         string  `json:"first_name" db:"first_name"`
	Quizzes           int     `json:"quizzes" db:"quizzes"`
	AveragePercentage float64 `json:"average_percentage" db:"average_percentage"`
}

// OverallStats is the summary block of a report period
type OverallStats struct {
	From               time.Time `json:"from"`
	To                 time.Time `json:"to"`
	TotalUsers         int       `json:"total_users" db:"total_users"`
	NewUsers           int       `json:"new_users" db:"new_users"`
	ActiveUsers        int       `json:"active_users" db:"active_users"`
	TotalQuizzes       int       `json:"total_quizzes" db:"total_quizzes"`
	CompletedQuizzes   int       `json:"completed_quizzes" db:"completed_quizzes"`
	AveragePercentage  float64   `json:"average_percentage" db:"average_percentage"`
	AverageTimeSeconds float64   `json:"average_time_seconds" db:"average_time_seconds"`
	TotalAnswers       int       `json:"total_answers" db:"total_answers"`
	CorrectAnswers     int       `json:"correct_answers" db:"correct_answers"`
	TotalQuestions     int       `json:"total_questions" db:"total_questions"`
}

// UserProgress is one user's activity within a report period
type UserProgress struct {
	TelegramID        int64   `json:"telegram_id" db:"telegram_id"`
	Username          string  `json:"username" db:"username"`
	FirstName         string  `json:"first_name" db:"first_name"`
	Quizzes           int     `json:"quizzes" db:"quizzes"`
	AveragePercentage float64 `json:"average_percentage" db:"average_percentage"`
	BestPercentage    float64 `json:"best_percentage" db:"best_percentage"`
	TotalTimeSeconds  int     `json:"total_time_seconds" db:"total_time_seconds"`
}

// GradePerformance aggregates answers per grade level
type GradePerformance struct {
	GradeID   int64  `json:"grade_id" db:"grade_id"`
	GradeName string `json:"grade_name" db:"grade_name"`
	Attempts  int    `json:"attempts" db:"attempts"`
	Correct   int    `json:"correct" db:"correct"`
	Users     int    `json:"users" db:"users"`
}

// SuccessRate returns the share of correct answers in percent
func (g GradePerformance) SuccessRate() float64 {
	return Rate(g.Correct, g.Attempts)
}

// DifficultQuestion is a question with a low success rate
type DifficultQuestion struct {
	QuestionID int64  `json:"question_id" db:"question_id"`
	Text       string `json:"text" db:"question_text"`
	Attempts   int    `json:"attempts" db:"attempts"`
	Correct    int    `json:"correct" db:"correct"`
}

// SuccessRate returns the share of correct answers in percent
func (d DifficultQuestion) SuccessRate() float64 {
	return Rate(d.Correct, d.Attempts)
}

// Difficulty labels the question by its success rate
func (d DifficultQuestion) Difficulty() string {
	rate := d.SuccessRate()
	switch {
	case rate < 30:
		return "Very Hard"
	case rate < 50:
		return "Hard"
	default:
		return "Medium"
	}
}

// HourActivity counts quizzes started in one hour of the day
type HourActivity struct {
	Hour    int `json:"hour"`
	Quizzes int `json:"quizzes"`
}

// Rate returns part/total in percent rounded to one decimal, 0 when total is 0
func Rate(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(int(float64(part)*1000/float64(total)+0.5)) / 10
}
