package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/example/chembot/internal/database"
	"github.com/example/chembot/pkg/models"
	"github.com/xuri/excelize/v2"
)

// ImportConfig defines the column layout of a question sheet
type ImportConfig struct {
	GradeColumn       string
	ChapterColumn     string
	LessonColumn      string
	QuestionColumn    string
	OptionColumns     []string
	CorrectColumn     string // 1-based option number
	ExplanationColumn string
	ImageColumn       string
	SheetName         string // empty means the first sheet
	StartRow          int    // 1-based
}

// DefaultImportConfig returns the default import configuration:
// grade, chapter, lesson, question, option 1-4, correct option, explanation, image URL
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		GradeColumn:       "A",
		ChapterColumn:     "B",
		LessonColumn:      "C",
		QuestionColumn:    "D",
		OptionColumns:     []string{"E", "F", "G", "H"},
		CorrectColumn:     "I",
		ExplanationColumn: "J",
		ImageColumn:       "K",
		StartRow:          2,
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Updated        int
	Skipped        int
	Errors         []string
}

// Curriculum creates grade, chapter and lesson rows on demand
type Curriculum interface {
	EnsureGrade(ctx context.Context, name string) (int64, error)
	EnsureChapter(ctx context.Context, gradeID int64, name string) (int64, error)
	EnsureLesson(ctx context.Context, chapterID int64, name string) (int64, error)
}

// QuestionWriter stores imported questions
type QuestionWriter interface {
	FindByText(ctx context.Context, lessonID *int64, text string) (*models.Question, error)
	Create(ctx context.Context, q *models.Question) error
	Update(ctx context.Context, q *models.Question) error
}

// Importer loads questions from Excel or CSV files
type Importer struct {
	config     ImportConfig
	curriculum Curriculum
	questions  QuestionWriter
}

// NewImporter creates an importer with the default column layout
func NewImporter(curriculum Curriculum, questions QuestionWriter) *Importer {
	return &Importer{config: DefaultImportConfig(), curriculum: curriculum, questions: questions}
}

// Import reads the file and creates or updates one question per row.
// The file name decides between CSV and Excel.
func (im *Importer) Import(ctx context.Context, fileName string, r io.Reader) (*ImportResult, error) {
	var (
		rows [][]string
		err  error
	)
	if strings.ToLower(filepath.Ext(fileName)) == ".csv" {
		rows, err = readCSV(r)
	} else {
		rows, err = im.readExcel(r)
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	lessons := make(map[string]*int64)
	for i, row := range rows {
		if i < im.config.StartRow-1 || isBlankRow(row) {
			continue
		}
		result.TotalProcessed++
		if err := im.processRow(ctx, row, lessons, result); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
		}
	}
	return result, nil
}

func (im *Importer) readExcel(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := im.config.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return rows, nil
}

// processRow creates or updates the question of a single row
func (im *Importer) processRow(ctx context.Context, row []string, lessons map[string]*int64, result *ImportResult) error {
	cell := func(column string) string {
		if column == "" {
			return ""
		}
		if idx := columnToIndex(column); idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	q, err := parseQuestion(cell, im.config)
	if err != nil {
		return err
	}

	lessonID, err := im.lessonFor(ctx, cell(im.config.GradeColumn), cell(im.config.ChapterColumn), cell(im.config.LessonColumn), lessons)
	if err != nil {
		return err
	}
	q.LessonID = lessonID

	existing, err := im.questions.FindByText(ctx, lessonID, q.Text)
	switch {
	case errors.Is(err, database.ErrNotFound):
		if err := im.questions.Create(ctx, q); err != nil {
			return err
		}
		result.Created++
	case err != nil:
		return err
	default:
		q.ID = existing.ID
		if err := im.questions.Update(ctx, q); err != nil {
			return err
		}
		result.Updated++
	}
	return nil
}

// parseQuestion validates the question columns. The sheet numbers options from 1,
// the stored correct index is 0-based.
func parseQuestion(cell func(string) string, config ImportConfig) (*models.Question, error) {
	text := cell(config.QuestionColumn)
	if text == "" {
		return nil, fmt.Errorf("question text cannot be empty")
	}

	options := make(models.Options, 0, len(config.OptionColumns))
	valid := 0
	for _, col := range config.OptionColumns {
		opt := cell(col)
		if opt != "" {
			valid++
		}
		options = append(options, opt)
	}
	for len(options) > 0 && options[len(options)-1] == "" {
		options = options[:len(options)-1]
	}
	if valid < 2 {
		return nil, fmt.Errorf("at least two options are required")
	}

	number, err := parseIntInRange(cell(config.CorrectColumn), 1, len(options))
	if err != nil {
		return nil, fmt.Errorf("correct option must be a number between 1 and %d", len(options))
	}
	correct := number - 1
	if options[correct] == "" {
		return nil, fmt.Errorf("correct option %d is empty", number)
	}

	return &models.Question{
		Text:         text,
		Options:      options,
		CorrectIndex: correct,
		Explanation:  cell(config.ExplanationColumn),
		ImageURL:     cell(config.ImageColumn),
	}, nil
}

// lessonFor resolves the curriculum path of a row. A row without any of the
// three names is imported without a lesson.
func (im *Importer) lessonFor(ctx context.Context, grade, chapter, lesson string, cache map[string]*int64) (*int64, error) {
	if grade == "" && chapter == "" && lesson == "" {
		return nil, nil
	}
	if grade == "" || chapter == "" || lesson == "" {
		return nil, fmt.Errorf("grade, chapter and lesson must be filled in together")
	}

	key := strings.ToLower(grade + "\x00" + chapter + "\x00" + lesson)
	if id, ok := cache[key]; ok {
		return id, nil
	}

	gradeID, err := im.curriculum.EnsureGrade(ctx, grade)
	if err != nil {
		return nil, fmt.Errorf("failed to process grade: %w", err)
	}
	chapterID, err := im.curriculum.EnsureChapter(ctx, gradeID, chapter)
	if err != nil {
		return nil, fmt.Errorf("failed to process chapter: %w", err)
	}
	lessonID, err := im.curriculum.EnsureLesson(ctx, chapterID, lesson)
	if err != nil {
		return nil, fmt.Errorf("failed to process lesson: %w", err)
	}
	cache[key] = &lessonID
	return &lessonID, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// columnToIndex converts an Excel column letter to a 0-based index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}

// parseIntInRange parses s and fails when it is outside [min, max]
func parseIntInRange(s string, min, max int) (int, error) {
	val, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if val < min || val > max {
		return 0, fmt.Errorf("%d is out of range", val)
	}
	return val, nil
}
