package report

import (
	"fmt"
	"strings"
	"time"
)

// MonthRange returns [first of month, first of next month) for the month
// containing t, in UTC.
func MonthRange(t time.Time) (time.Time, time.Time) {
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// EmailBody renders a Summary as the plain-text monthly activity mail.
func EmailBody(userName string, month time.Time, s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nHere is your QuizMaster activity for %s.\n\n", userName, month.Format("January 2006"))
	fmt.Fprintf(&b, "  Quizzes attempted:  %d\n", s.Total)
	fmt.Fprintf(&b, "  Completed:          %d\n", s.Completed)
	fmt.Fprintf(&b, "  Passed:             %d (%.0f%%)\n", s.Passed, s.PassRate)
	fmt.Fprintf(&b, "  Average score:      %.1f\n", s.AvgScore)
	fmt.Fprintf(&b, "  Highest score:      %.1f\n", s.HighestScore)
	if len(s.BySubject) > 0 {
		b.WriteString("\nBy subject:\n")
		for _, sub := range s.BySubject {
			fmt.Fprintf(&b, "  %-20s %.1f avg over %d attempt(s)\n", sub.Subject, sub.AvgScore, sub.Attempts)
		}
	}
	if len(s.Recent) > 0 {
		b.WriteString("\nRecent attempts:\n")
		for _, r := range s.Recent {
			fmt.Fprintf(&b, "  %s  %s (%s)  %.1f  %s\n",
				time.Unix(r.StartedAt, 0).UTC().Format("2006-01-02"),
				r.QuizTitle, r.SubjectName, r.Score, r.ResultStatus())
		}
	}
	b.WriteString("\nKeep it up!\nQuizMaster\n")
	return b.String()
}
