package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Options is the ordered list of answer texts of a question, stored as a JSON array.
type Options []string

// Value implements driver.Valuer
func (o Options) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(o))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (o *Options) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*o = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported options type %T", src)
	}
	if len(raw) == 0 {
		*o = nil
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(o))
}

// Question is a multiple choice chemistry question.
// CorrectIndex is 0-based and refers to the stored order of Options.
type Question struct {
	ID           int64     `json:"id" db:"id"`
	LessonID     *int64    `json:"lesson_id,omitempty" db:"lesson_id"`
	Text         string    `json:"text" db:"question_text"`
	Options      Options   `json:"options" db:"options"`
	CorrectIndex int       `json:"correct_index" db:"correct_index"`
	Explanation  string    `json:"explanation,omitempty" db:"explanation"`
	ImageURL     string    `json:"image_url,omitempty" db:"image_url"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ValidOptionCount returns the number of non-blank options
func (q Question) ValidOptionCount() int {
	n := 0
	for _, opt := range q.Options {
		if strings.TrimSpace(opt) != "" {
			n++
		}
	}
	return n
}

// CorrectOption returns the text of the correct option or "" when the index is out of range
func (q Question) CorrectOption() string {
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return ""
	}
	return q.Options[q.CorrectIndex]
}

// Grade is a school grade level, the root of the curriculum tree
type Grade struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Chapter belongs to a grade
type Chapter struct {
	ID      int64  `json:"id" db:"id"`
	GradeID int64  `json:"grade_id" db:"grade_id"`
	Name    string `json:"name" db:"name"`
}

// Lesson belongs to a chapter
type Lesson struct {
	ID        int64  `json:"id" db:"id"`
	ChapterID int64  `json:"chapter_id" db:"chapter_id"`
	Name      string `json:"name" db:"name"`
}
