package mail

import (
	"fmt"
	"strings"
	"time"

	"github.com/quizmaster-app/quizmaster/internal/quiz"
)

func describeWindow(q quiz.QuizSummary) string {
	if !q.Scheduled || q.StartsAt == nil {
		return "It is available now."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "It opens on %s", time.Unix(*q.StartsAt, 0).UTC().Format("Mon, 02 Jan 2006 15:04 MST"))
	if q.EndsAt != nil {
		fmt.Fprintf(&b, " and closes on %s", time.Unix(*q.EndsAt, 0).UTC().Format("Mon, 02 Jan 2006 15:04 MST"))
	}
	b.WriteString(".")
	return b.String()
}

func describeLimit(q quiz.QuizSummary) string {
	if q.TimeLimitMin == nil || *q.TimeLimitMin <= 0 {
		return "There is no time limit."
	}
	return fmt.Sprintf("You will have %d minutes to complete it.", *q.TimeLimitMin)
}

// QuizNotification announces a newly scheduled quiz to a student.
func QuizNotification(userName string, q quiz.QuizSummary) Message {
	body := fmt.Sprintf(`Hi %s,

A new quiz has been scheduled.

  Quiz:    %s
  Chapter: %s
  Subject: %s

%s %s
Pass mark: %.0f%%.

Good luck!
QuizMaster`,
		userName, q.Title, q.ChapterName, q.SubjectName,
		describeWindow(q), describeLimit(q), q.PassPercentage)
	return Message{Subject: "New quiz: " + q.Title, Body: body}
}

// QuizReminder nudges a student shortly before a scheduled quiz opens.
func QuizReminder(userName string, q quiz.QuizSummary) Message {
	body := fmt.Sprintf(`Hi %s,

Reminder: the quiz "%s" (%s / %s) starts soon.

%s %s
Pass mark: %.0f%%.

QuizMaster`,
		userName, q.Title, q.SubjectName, q.ChapterName,
		describeWindow(q), describeLimit(q), q.PassPercentage)
	return Message{Subject: "Starting soon: " + q.Title, Body: body}
}
