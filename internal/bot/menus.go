package bot

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/chembot/internal/quiz"
	"github.com/example/chembot/pkg/models"
)

// menuState is the step of the quiz setup a user is at
type menuState string

const (
	stateSelectingType     menuState = "selecting_type"
	stateSelectingScope    menuState = "selecting_scope"
	stateSelectingCount    menuState = "selecting_count"
	stateSelectingDuration menuState = "selecting_duration"
)

// UserState is the quiz a user is putting together in the menus
type UserState struct {
	State   menuState
	Type    models.QuizType
	ScopeID int64
	Title   string
	Count   int
	Updated time.Time
}

// conversations keeps the per-user chat state that lives outside a running quiz
type conversations struct {
	mu                 sync.Mutex
	userStates         map[int64]*UserState
	lastRequests       map[int64]quiz.Request
	awaitingFileUpload map[int64]bool
}

func newConversations() *conversations {
	return &conversations{
		userStates:         make(map[int64]*UserState),
		lastRequests:       make(map[int64]quiz.Request),
		awaitingFileUpload: make(map[int64]bool),
	}
}

func (c *conversations) state(userID int64) (UserState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.userStates[userID]
	if !ok {
		return UserState{}, false
	}
	return *st, true
}

// update applies fn to the user's state, creating it when missing
func (c *conversations) update(userID int64, fn func(st *UserState)) UserState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.userStates[userID]
	if !ok {
		st = &UserState{State: stateSelectingType}
		c.userStates[userID] = st
	}
	fn(st)
	st.Updated = time.Now()
	return *st
}

func (c *conversations) reset(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.userStates, userID)
	delete(c.awaitingFileUpload, userID)
}

func (c *conversations) remember(req quiz.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRequests[req.UserID] = req
}

func (c *conversations) lastRequest(userID int64) (quiz.Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.lastRequests[userID]
	return req, ok
}

func (c *conversations) setAwaitingUpload(userID int64, v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v {
		c.awaitingFileUpload[userID] = true
	} else {
		delete(c.awaitingFileUpload, userID)
	}
}

func (c *conversations) awaitingUpload(userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaitingFileUpload[userID]
}

// MainMenuButtons returns the buttons for the main menu
func (b *Bot) MainMenuButtons(userID int64) [][]MenuButton {
	buttons := [][]MenuButton{
		{{Text: "🧪 Start quiz", CallbackData: callbackQuizMenu}},
		{
			{Text: "📊 My statistics", CallbackData: callbackStats},
			{Text: "❓ Help", CallbackData: callbackHelp},
		},
	}
	if b.isAdmin(userID) {
		buttons = append(buttons, []MenuButton{{Text: "🛠 Admin panel", CallbackData: callbackAdminPanel}})
	}
	return buttons
}

func quizTypeButtons() [][]MenuButton {
	return [][]MenuButton{
		{{Text: "🎲 Random questions", CallbackData: quizTypeData(models.QuizRandom)}},
		{{Text: "🎓 By grade", CallbackData: quizTypeData(models.QuizGrade)}},
		{{Text: "📖 By chapter", CallbackData: quizTypeData(models.QuizChapter)}},
		{{Text: "📝 By lesson", CallbackData: quizTypeData(models.QuizLesson)}},
		{{Text: "🔁 Review my mistakes", CallbackData: quizTypeData(models.QuizReview)}},
		{{Text: "🏠 Main menu", CallbackData: callbackMainMenu}},
	}
}

func (b *Bot) countButtons() [][]MenuButton {
	var row []MenuButton
	for _, n := range b.config.QuestionCounts {
		row = append(row, MenuButton{Text: fmt.Sprintf("%d", n), CallbackData: callbackData(prefixQuizCount, int64(n))})
	}
	return [][]MenuButton{row, {{Text: "⬅️ Back", CallbackData: callbackQuizMenu}}}
}

func (b *Bot) durationButtons() [][]MenuButton {
	var rows [][]MenuButton
	var row []MenuButton
	for _, d := range b.config.Durations {
		row = append(row, MenuButton{
			Text:         durationLabel(d),
			CallbackData: callbackData(prefixQuizDuration, int64(d/time.Minute)),
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return append(rows, []MenuButton{{Text: "⬅️ Back", CallbackData: callbackQuizMenu}})
}

func durationLabel(d time.Duration) string {
	if d <= 0 {
		return "♾ No limit"
	}
	return fmt.Sprintf("⏱ %d min", int(d/time.Minute))
}

func resultsButtons() [][]MenuButton {
	return [][]MenuButton{
		{{Text: "🔄 Same quiz again", CallbackData: callbackRestartQuiz}},
		{{Text: "🔁 Review my mistakes", CallbackData: quizTypeData(models.QuizReview)}},
		{
			{Text: "📊 My statistics", CallbackData: callbackStats},
			{Text: "🏠 Main menu", CallbackData: callbackMainMenu},
		},
	}
}

func adminButtons() [][]MenuButton {
	return [][]MenuButton{
		{
			{Text: "📈 Generate report", CallbackData: callbackAdminReport},
			{Text: "📊 Analytics", CallbackData: callbackAdminAnalytics},
		},
		{
			{Text: "📥 Export users", CallbackData: callbackAdminExport},
			{Text: "📤 Import questions", CallbackData: callbackAdminImport},
		},
		{{Text: "🚫 Blocked users", CallbackData: callbackAdminBlocked}},
		{{Text: "🏠 Main menu", CallbackData: callbackMainMenu}},
	}
}

// listButtons puts one curriculum entry per row and a back button at the end
func listButtons(names []string, data []string, back string) [][]MenuButton {
	rows := make([][]MenuButton, 0, len(names)+1)
	for i, name := range names {
		rows = append(rows, []MenuButton{{Text: name, CallbackData: data[i]}})
	}
	return append(rows, []MenuButton{{Text: "⬅️ Back", CallbackData: back}})
}
