package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/quizmaster-app/quizmaster/internal/quiz"
)

var csvHeader = []string{
	"User Name", "Email", "Quiz Title", "Subject", "Chapter",
	"Score", "Status", "Time Limit (min)", "Pass %", "Date",
}

// WriteCSV streams attempt rows as CSV, one row per attempt plus a header.
func WriteCSV(w io.Writer, rows []quiz.AttemptRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		limit := ""
		if r.TimeLimitMin != nil {
			limit = fmt.Sprintf("%d", *r.TimeLimitMin)
		}
		date := time.Unix(r.StartedAt, 0).UTC().Format("2006-01-02 15:04")
		rec := []string{
			r.UserName,
			r.UserEmail,
			r.QuizTitle,
			r.SubjectName,
			r.ChapterName,
			fmt.Sprintf("%.1f", r.Score),
			r.ResultStatus(),
			limit,
			fmt.Sprintf("%.0f", r.PassPercentage),
			date,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
