package report

import (
	"fmt"
	"strconv"

	"github.com/example/chembot/internal/excel"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the report workbook
const (
	SheetSummary   = "Summary"
	SheetUsers     = "Users"
	SheetGrades    = "Grades"
	SheetDifficult = "Difficult Questions"
	SheetActivity  = "Activity"
	SheetCharts    = "Charts"
)

const dateLayout = "2006-01-02"

// Workbook builds the report workbook
func Workbook(data *Data) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	steps := []func(*excelize.File, *Data) error{
		writeSummary,
		writeUsers,
		writeGrades,
		writeDifficult,
		writeActivity,
		writeCharts,
	}
	for _, step := range steps {
		if err := step(f, data); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeSummary(f *excelize.File, data *Data) error {
	o := data.Overall
	rows := [][]interface{}{
		{"Period", periodLabel(data)},
		{"Total users", o.TotalUsers},
		{"New users", o.NewUsers},
		{"Active users", o.ActiveUsers},
		{"Quizzes started", o.TotalQuizzes},
		{"Quizzes completed", o.CompletedQuizzes},
		{"Average score %", o.AveragePercentage},
		{"Average time (min)", roundTo(o.AverageTimeSeconds/60, 1)},
		{"Answers", o.TotalAnswers},
		{"Correct answers", o.CorrectAnswers},
		{"Questions in bank", o.TotalQuestions},
	}
	return excel.WriteTable(f, SheetSummary, []string{"Metric", "Value"}, rows)
}

func writeUsers(f *excelize.File, data *Data) error {
	rows := make([][]interface{}, 0, len(data.Users))
	for _, u := range data.Users {
		rows = append(rows, []interface{}{
			u.TelegramID, u.Username, u.FirstName, u.Quizzes,
			u.AveragePercentage, u.BestPercentage, roundTo(float64(u.TotalTimeSeconds)/60, 1),
		})
	}
	return excel.WriteTable(f, SheetUsers,
		[]string{"Telegram ID", "Username", "First name", "Quizzes", "Average %", "Best %", "Time (min)"}, rows)
}

func writeGrades(f *excelize.File, data *Data) error {
	rows := make([][]interface{}, 0, len(data.Grades))
	for _, g := range data.Grades {
		rows = append(rows, []interface{}{g.GradeName, g.Users, g.Attempts, g.Correct, g.SuccessRate()})
	}
	return excel.WriteTable(f, SheetGrades,
		[]string{"Grade", "Users", "Answers", "Correct", "Success %"}, rows)
}

func writeDifficult(f *excelize.File, data *Data) error {
	rows := make([][]interface{}, 0, len(data.Difficult))
	for _, q := range data.Difficult {
		rows = append(rows, []interface{}{q.QuestionID, q.Text, q.Attempts, q.Correct, q.SuccessRate(), q.Difficulty()})
	}
	return excel.WriteTable(f, SheetDifficult,
		[]string{"Question ID", "Question", "Attempts", "Correct", "Success %", "Difficulty"}, rows)
}

func writeActivity(f *excelize.File, data *Data) error {
	rows := make([][]interface{}, 0, len(data.Activity))
	for _, a := range data.Activity {
		rows = append(rows, []interface{}{fmt.Sprintf("%02d:00", a.Hour), a.Quizzes})
	}
	return excel.WriteTable(f, SheetActivity, []string{"Hour", "Quizzes"}, rows)
}

// writeCharts renders the charts and places them one below the other
func writeCharts(f *excelize.File, data *Data) error {
	if _, err := f.NewSheet(SheetCharts); err != nil {
		return fmt.Errorf("failed to create charts sheet: %w", err)
	}

	type chart struct {
		title  string
		labels []string
		values []float64
	}
	var charts []chart

	activity := chart{title: "Quizzes by hour"}
	for _, a := range data.Activity {
		activity.labels = append(activity.labels, strconv.Itoa(a.Hour))
		activity.values = append(activity.values, float64(a.Quizzes))
	}
	charts = append(charts, activity)

	if len(data.Grades) > 0 {
		grades := chart{title: "Success rate by grade (%)"}
		for _, g := range data.Grades {
			grades.labels = append(grades.labels, g.GradeName)
			grades.values = append(grades.values, g.SuccessRate())
		}
		charts = append(charts, grades)
	}

	for i, c := range charts {
		png, err := BarChart(c.title, c.labels, c.values)
		if err != nil {
			return err
		}
		cell := "A" + strconv.Itoa(1+i*22)
		err = f.AddPictureFromBytes(SheetCharts, cell, &excelize.Picture{
			Extension: ".png",
			File:      png,
			Format:    &excelize.GraphicOptions{AltText: c.title},
		})
		if err != nil {
			return fmt.Errorf("failed to add chart %q: %w", c.title, err)
		}
	}
	return nil
}

func roundTo(v float64, decimals int) float64 {
	p := 1.0
	for i := 0; i < decimals; i++ {
		p *= 10
	}
	return float64(int64(v*p+0.5)) / p
}
