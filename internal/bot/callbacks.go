package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/chembot/pkg/models"
)

// ErrBadCallback is returned for callback data that cannot be parsed
var ErrBadCallback = errors.New("malformed callback data")

// Plain callback keys
const (
	callbackMainMenu       = "main_menu"
	callbackQuizMenu       = "quiz_menu"
	callbackHelp           = "help"
	callbackStats          = "stats"
	callbackEndQuiz        = "end_quiz"
	callbackRestartQuiz    = "restart_quiz"
	callbackAdminPanel     = "admin_panel"
	callbackAdminBlocked   = "admin_blocked"
	callbackAdminReport    = "admin_report"
	callbackAdminExport    = "admin_export"
	callbackAdminImport    = "admin_import"
	callbackAdminAnalytics = "admin_analytics"
)

// Prefixes of callbacks that carry arguments
const (
	prefixQuizType       = "quiz_type"
	prefixGradeQuiz      = "grade_quiz"
	prefixChapterQuiz    = "chapter_quiz"
	prefixLessonQuiz     = "lesson_quiz"
	prefixGradeChapters  = "grade_chapters"
	prefixChapterLessons = "chapter_lessons"
	prefixQuizCount      = "quiz_count"
	prefixQuizDuration   = "quiz_duration"
	prefixAnswer         = "answer"
	prefixSkip           = "skip"
)

// number of integer arguments after each prefix
var callbackArity = map[string]int{
	prefixGradeQuiz:      1,
	prefixChapterQuiz:    1,
	prefixLessonQuiz:     1,
	prefixGradeChapters:  1,
	prefixChapterLessons: 1,
	prefixQuizCount:      1,
	prefixQuizDuration:   1,
	prefixAnswer:         2,
	prefixSkip:           1,
}

var plainCallbacks = map[string]bool{
	callbackMainMenu:       true,
	callbackQuizMenu:       true,
	callbackHelp:           true,
	callbackStats:          true,
	callbackEndQuiz:        true,
	callbackRestartQuiz:    true,
	callbackAdminPanel:     true,
	callbackAdminBlocked:   true,
	callbackAdminReport:    true,
	callbackAdminExport:    true,
	callbackAdminImport:    true,
	callbackAdminAnalytics: true,
}

// callback is a parsed inline button payload
type callback struct {
	action   string
	args     []int64
	quizType models.QuizType
}

func (c callback) arg(i int) int64 {
	if i < len(c.args) {
		return c.args[i]
	}
	return 0
}

// parseCallback splits data on "_" and parses the trailing integers
func parseCallback(data string) (callback, error) {
	if plainCallbacks[data] {
		return callback{action: data}, nil
	}

	if rest, ok := strings.CutPrefix(data, prefixQuizType+"_"); ok {
		t := models.QuizType(rest)
		switch t {
		case models.QuizRandom, models.QuizChapter, models.QuizLesson, models.QuizGrade, models.QuizReview:
			return callback{action: prefixQuizType, quizType: t}, nil
		}
		return callback{}, fmt.Errorf("%w: unknown quiz type %q", ErrBadCallback, rest)
	}

	parts := strings.Split(data, "_")
	for n := 1; n < len(parts); n++ {
		prefix := strings.Join(parts[:n], "_")
		arity, ok := callbackArity[prefix]
		if !ok {
			continue
		}
		if len(parts)-n != arity {
			return callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
		}
		args := make([]int64, 0, arity)
		for _, p := range parts[n:] {
			v, err := strconv.ParseInt(p, 10, 64)
			if err != nil {
				return callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
			}
			args = append(args, v)
		}
		return callback{action: prefix, args: args}, nil
	}
	return callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
}

func quizTypeData(t models.QuizType) string {
	return prefixQuizType + "_" + string(t)
}

func callbackData(prefix string, args ...int64) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	for _, a := range args {
		sb.WriteByte('_')
		sb.WriteString(strconv.FormatInt(a, 10))
	}
	return sb.String()
}

func answerData(questionID int64, option int) string {
	return callbackData(prefixAnswer, questionID, int64(option))
}

func skipData(questionID int64) string {
	return callbackData(prefixSkip, questionID)
}
