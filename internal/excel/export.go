package excel

import (
	"bytes"
	"fmt"

	"github.com/example/chembot/pkg/models"
	"github.com/xuri/excelize/v2"
)

const timeLayout = "2006-01-02 15:04"

// WriteTable fills sheet with a bold header row followed by rows, creating the sheet if needed
func WriteTable(f *excelize.File, sheet string, headers []string, rows [][]interface{}) error {
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+2, sheet, err)
		}
	}

	if len(headers) == 0 {
		return nil
	}
	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", style); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 20)
}

// UsersWorkbook builds the /export_users workbook: every registered user with the
// aggregates of their finished quizzes
func UsersWorkbook(users []models.User, summaries []models.UserProgress) (*bytes.Buffer, error) {
	byID := make(map[int64]models.UserProgress, len(summaries))
	for _, s := range summaries {
		byID[s.TelegramID] = s
	}

	rows := make([][]interface{}, 0, len(users))
	for _, u := range users {
		s := byID[u.TelegramID]
		rows = append(rows, []interface{}{
			u.TelegramID,
			u.Username,
			u.FirstName,
			u.LastName,
			u.CreatedAt.Format(timeLayout),
			u.LastActive.Format(timeLayout),
			s.Quizzes,
			s.AveragePercentage,
			s.BestPercentage,
		})
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Users"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	headers := []string{"Telegram ID", "Username", "First name", "Last name", "Registered", "Last active", "Quizzes", "Average %", "Best %"}
	if err := WriteTable(f, sheet, headers, rows); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}
