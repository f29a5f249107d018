package bot

import (
	"context"
	"fmt"

	"github.com/example/chembot/internal/logger"
	"github.com/example/chembot/internal/quiz"
	"github.com/example/chembot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Presenter renders quiz events as Telegram messages
type Presenter struct {
	api    Telegram
	config *BotConfig
	log    *logger.Logger
}

var _ quiz.Presenter = (*Presenter)(nil)

// NewPresenter creates a presenter sending through api
func NewPresenter(api Telegram, config *BotConfig, log *logger.Logger) *Presenter {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Presenter{api: api, config: config, log: log.With("component", "presenter")}
}

// ShowQuestion sends the question with its answer keyboard. The picture, when
// there is one, goes first and a failure to send it is not fatal.
func (p *Presenter) ShowQuestion(_ context.Context, v quiz.QuestionView) (int, error) {
	if v.Question.ImageURL != "" {
		photo := tgbotapi.NewPhoto(v.ChatID, tgbotapi.FileURL(v.Question.ImageURL))
		if _, err := p.api.Send(photo); err != nil {
			p.log.Warn("failed to send question image", "question_id", v.Question.ID, "error", err)
		}
	}

	msg := tgbotapi.NewMessage(v.ChatID, questionText(v))
	msg.ReplyMarkup = createKeyboard(questionButtons(v))
	sent, err := p.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send question %d: %w", v.Question.ID, err)
	}
	return sent.MessageID, nil
}

// ShowFeedback replaces the question message with the verdict, removing the buttons
func (p *Presenter) ShowFeedback(_ context.Context, f quiz.Feedback) error {
	return p.replace(f.ChatID, f.MessageID, feedbackText(f))
}

// ShowQuestionTimedOut marks the question message as expired
func (p *Presenter) ShowQuestionTimedOut(_ context.Context, chatID int64, messageID int, q models.Question) error {
	return p.replace(chatID, messageID, timedOutText(q))
}

// ShowTimeUp announces that the overall time limit was reached
func (p *Presenter) ShowTimeUp(_ context.Context, chatID int64) error {
	return p.send(tgbotapi.NewMessage(chatID, "⏰ Time's up! The quiz is over."))
}

// ShowResults sends the results, split into several messages when long
func (p *Presenter) ShowResults(_ context.Context, chatID int64, r quiz.Result) error {
	chunks := splitMessage(resultsText(r), p.config.MaxMessageLength)
	for i, chunk := range chunks {
		msg := tgbotapi.NewMessage(chatID, chunk)
		if i == len(chunks)-1 {
			msg.ReplyMarkup = createKeyboard(resultsButtons())
		}
		if err := p.send(msg); err != nil {
			return err
		}
	}
	return nil
}

// ShowNoQuestions tells the user the selection is empty and offers the quiz menu again
func (p *Presenter) ShowNoQuestions(_ context.Context, chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "😔 There are no questions for this selection yet. Please choose another one.")
	msg.ReplyMarkup = createKeyboard(quizTypeButtons())
	return p.send(msg)
}

// replace edits messageID to text. Editing without markup drops the inline
// keyboard. A failed edit falls back to a new message.
func (p *Presenter) replace(chatID int64, messageID int, text string) error {
	if messageID != 0 {
		_, err := p.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
		if err == nil {
			return nil
		}
		p.log.Debug("failed to edit message", "chat_id", chatID, "message_id", messageID, "error", err)
		// make sure the stale buttons cannot be pressed again
		strip := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
			InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
		})
		if _, err := p.api.Request(strip); err != nil {
			p.log.Debug("failed to remove keyboard", "chat_id", chatID, "message_id", messageID, "error", err)
		}
	}
	return p.send(tgbotapi.NewMessage(chatID, text))
}

func (p *Presenter) send(c tgbotapi.Chattable) error {
	if _, err := p.api.Send(c); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
