package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/quizmaster-app/quizmaster/internal/quiz"
)

func intPtr(n int) *int { return &n }

func sampleRows() []quiz.AttemptRow {
	return []quiz.AttemptRow{
		{
			AttemptID: "a3", UserID: "u1", UserName: "Asha", UserEmail: "asha@example.com",
			QuizTitle: "Fractions", ChapterName: "Arithmetic", SubjectName: "Math",
			Status: quiz.StatusSubmitted, Score: 80, PassPercentage: 60,
			TimeLimitMin: intPtr(30), StartedAt: time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC).Unix(),
		},
		{
			AttemptID: "a2", UserID: "u1", UserName: "Asha", UserEmail: "asha@example.com",
			QuizTitle: "Algebra Basics", ChapterName: "Algebra", SubjectName: "Math",
			Status: quiz.StatusSubmitted, Score: 40, PassPercentage: 60,
			StartedAt: time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC).Unix(),
		},
		{
			AttemptID: "a1", UserID: "u1", UserName: "Asha", UserEmail: "asha@example.com",
			QuizTitle: "Verbs", ChapterName: "Grammar", SubjectName: "English",
			Status: quiz.StatusInProgress, Score: 0, PassPercentage: 50,
			StartedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC).Unix(),
		},
	}
}

func TestSummarize(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	s := Summarize("u1", from, to, sampleRows())

	if s.Total != 3 || s.Completed != 2 || s.Passed != 1 {
		t.Fatalf("totals: %+v", s)
	}
	if s.AvgScore != 60 {
		t.Fatalf("avg %v", s.AvgScore)
	}
	if s.HighestScore != 80 {
		t.Fatalf("highest %v", s.HighestScore)
	}
	if s.PassRate != 50 {
		t.Fatalf("pass rate %v", s.PassRate)
	}
	if len(s.BySubject) != 1 || s.BySubject[0].Subject != "Math" || s.BySubject[0].AvgScore != 60 {
		t.Fatalf("by subject: %+v", s.BySubject)
	}
	if len(s.Recent) != 3 {
		t.Fatalf("recent: %d", len(s.Recent))
	}
}

func TestWriteCSVRowCount(t *testing.T) {
	rows := sampleRows()
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatal(err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != len(rows)+1 {
		t.Fatalf("want %d records, got %d", len(rows)+1, len(recs))
	}
	if recs[0][0] != "User Name" || recs[0][6] != "Status" {
		t.Fatalf("header: %v", recs[0])
	}
	if recs[1][6] != "PASS" || recs[2][6] != "FAIL" || recs[3][6] != "INCOMPLETE" {
		t.Fatalf("status column: %v %v %v", recs[1][6], recs[2][6], recs[3][6])
	}
	if recs[3][7] != "" {
		t.Fatalf("untimed quiz should have empty limit, got %q", recs[3][7])
	}
}

func TestEmailBody(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	s := Summarize("u1", from, to, sampleRows())
	body := EmailBody("Asha", from, s)

	for _, want := range []string{"March 2026", "Quizzes attempted:  3", "Average score:      60.0", "Fractions", "PASS"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}

func TestMonthRange(t *testing.T) {
	from, to := MonthRange(time.Date(2026, 3, 17, 13, 0, 0, 0, time.UTC))
	if from != time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("from %v", from)
	}
	if to != time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("to %v", to)
	}
}
