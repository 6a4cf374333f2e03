// Package report aggregates attempt history into per-user summaries and CSV
// exports.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/quizmaster-app/quizmaster/internal/quiz"
)

type SubjectAvg struct {
	Subject  string  `json:"subject"`
	Attempts int     `json:"attempts"`
	AvgScore float64 `json:"avg_score"`
}

// Summary is one user's performance over a period.
type Summary struct {
	UserID       string           `json:"user_id"`
	From         int64            `json:"from"`
	To           int64            `json:"to"`
	Total        int              `json:"total"`
	Completed    int              `json:"completed"`
	Passed       int              `json:"passed"`
	PassRate     float64          `json:"pass_rate"`
	AvgScore     float64          `json:"avg_score"`
	HighestScore float64          `json:"highest_score"`
	BySubject    []SubjectAvg     `json:"by_subject"`
	Recent       []quiz.AttemptRow `json:"recent"`
}

const maxRecent = 10

// Build computes a Summary from the user's attempts in [from, to).
func Build(ctx context.Context, store quiz.Store, userID string, from, to time.Time) (Summary, error) {
	rows, err := store.ListAttempts(ctx, quiz.AttemptListOpts{
		UserID: userID,
		From:   from.Unix(),
		To:     to.Unix(),
	})
	if err != nil {
		return Summary{}, err
	}
	return Summarize(userID, from, to, rows), nil
}

// Summarize folds attempt rows into a Summary. Only submitted attempts count
// toward averages and the pass rate.
func Summarize(userID string, from, to time.Time, rows []quiz.AttemptRow) Summary {
	s := Summary{UserID: userID, From: from.Unix(), To: to.Unix(), Total: len(rows)}

	var sum float64
	bySubject := map[string]*SubjectAvg{}
	for _, r := range rows {
		if r.Status != quiz.StatusSubmitted {
			continue
		}
		s.Completed++
		sum += r.Score
		if r.Score > s.HighestScore {
			s.HighestScore = r.Score
		}
		if r.Passed() {
			s.Passed++
		}
		agg, ok := bySubject[r.SubjectName]
		if !ok {
			agg = &SubjectAvg{Subject: r.SubjectName}
			bySubject[r.SubjectName] = agg
		}
		agg.Attempts++
		agg.AvgScore += r.Score
	}
	if s.Completed > 0 {
		s.AvgScore = sum / float64(s.Completed)
		s.PassRate = 100 * float64(s.Passed) / float64(s.Completed)
	}
	for _, agg := range bySubject {
		agg.AvgScore /= float64(agg.Attempts)
		s.BySubject = append(s.BySubject, *agg)
	}
	sort.Slice(s.BySubject, func(i, j int) bool { return s.BySubject[i].Subject < s.BySubject[j].Subject })

	// rows arrive newest first
	if len(rows) > maxRecent {
		rows = rows[:maxRecent]
	}
	s.Recent = rows
	return s
}
