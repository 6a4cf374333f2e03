package tasks

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/quizmaster-app/quizmaster/internal/cache"
	"github.com/quizmaster-app/quizmaster/internal/mail"
	"github.com/quizmaster-app/quizmaster/internal/quiz"
	"github.com/quizmaster-app/quizmaster/internal/report"
	"github.com/quizmaster-app/quizmaster/internal/storage"
)

const (
	staleAttemptAge = 24 * time.Hour
	exportMaxAge    = 7 * 24 * time.Hour
)

// Handler executes background jobs against the store, mailer and cache.
type Handler struct {
	Store   quiz.Store
	DB      *sql.DB
	Mailer  mail.Mailer
	Cache   cache.Cache
	Exports *storage.ExportStore

	// ReminderLead is how far ahead the reminder scan looks.
	ReminderLead time.Duration
	Now          func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Register wires every job type onto the worker mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeQuizNotification, h.HandleQuizNotification)
	mux.HandleFunc(TypeQuizReminder, h.HandleQuizReminder)
	mux.HandleFunc(TypeMonthlyReport, h.HandleMonthlyReport)
	mux.HandleFunc(TypeReportExport, h.HandleReportExport)
	mux.HandleFunc(TypeAttemptsCleanup, h.HandleAttemptsCleanup)
	mux.HandleFunc(TypeStatsRefresh, h.HandleStatsRefresh)
	mux.HandleFunc(TypeReminderScan, h.HandleReminderScan)
}

func (h *Handler) students(ctx context.Context) ([]quiz.UserRef, error) {
	rows, err := h.DB.QueryContext(ctx, `SELECT id,name,email FROM users WHERE role='student' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []quiz.UserRef
	for rows.Next() {
		var u quiz.UserRef
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (h *Handler) quizSummary(ctx context.Context, quizID string) (quiz.QuizSummary, error) {
	q, err := h.Store.GetQuiz(ctx, quizID, false)
	if err != nil {
		return quiz.QuizSummary{}, err
	}
	ch, err := h.Store.GetChapter(ctx, q.ChapterID)
	if err != nil {
		return quiz.QuizSummary{}, err
	}
	sub, err := h.Store.GetSubject(ctx, ch.SubjectID)
	if err != nil {
		return quiz.QuizSummary{}, err
	}
	return quiz.QuizSummary{
		ID: q.ID, ChapterID: ch.ID, ChapterName: ch.Name,
		SubjectID: sub.ID, SubjectName: sub.Name,
		Title: q.Title, TimeLimitMin: q.TimeLimitMin, PassPercentage: q.PassPercentage,
		Scheduled: q.Scheduled, StartsAt: q.StartsAt, EndsAt: q.EndsAt,
		QuestionCount: len(q.Questions),
	}, nil
}

func (h *Handler) broadcast(ctx context.Context, build func(name string, q quiz.QuizSummary) mail.Message, qs quiz.QuizSummary) error {
	users, err := h.students(ctx)
	if err != nil {
		return err
	}
	var failed int
	for _, u := range users {
		msg := build(u.Name, qs)
		msg.To = u.Email
		if err := h.Mailer.Send(ctx, msg); err != nil {
			log.Printf("mail to %s: %v", u.Email, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d deliveries failed", failed, len(users))
	}
	return nil
}

func (h *Handler) HandleQuizNotification(ctx context.Context, t *asynq.Task) error {
	var p QuizNotificationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("payload: %w: %w", err, asynq.SkipRetry)
	}
	qs, err := h.quizSummary(ctx, p.QuizID)
	if err != nil {
		return err
	}
	return h.broadcast(ctx, mail.QuizNotification, qs)
}

func (h *Handler) HandleQuizReminder(ctx context.Context, t *asynq.Task) error {
	var p QuizReminderPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("payload: %w: %w", err, asynq.SkipRetry)
	}
	qs, err := h.quizSummary(ctx, p.QuizID)
	if err != nil {
		return err
	}
	return h.broadcast(ctx, mail.QuizReminder, qs)
}

// HandleReminderScan finds scheduled quizzes opening within ReminderLead and
// sends each one's reminder once. The cache marker dedupes across scans.
func (h *Handler) HandleReminderScan(ctx context.Context, _ *asynq.Task) error {
	lead := h.ReminderLead
	if lead <= 0 {
		lead = time.Hour
	}
	now := h.now()
	upcoming, err := h.Store.UpcomingScheduled(ctx, now, now.Add(lead))
	if err != nil {
		return err
	}
	for _, qs := range upcoming {
		key := "reminded:" + qs.ID
		var sent bool
		if err := h.Cache.Get(ctx, key, &sent); err == nil {
			continue
		}
		if err := h.broadcast(ctx, mail.QuizReminder, qs); err != nil {
			return err
		}
		_ = h.Cache.Set(ctx, key, true, 2*lead)
	}
	return nil
}

// HandleMonthlyReport mails every student a summary of the previous month.
func (h *Handler) HandleMonthlyReport(ctx context.Context, t *asynq.Task) error {
	var p MonthlyReportPayload
	_ = json.Unmarshal(t.Payload(), &p)
	at := h.now().AddDate(0, -1, 0)
	if p.Month != 0 {
		at = time.Unix(p.Month, 0).UTC()
	}
	from, to := report.MonthRange(at)

	users, err := h.students(ctx)
	if err != nil {
		return err
	}
	var failed int
	for _, u := range users {
		s, err := report.Build(ctx, h.Store, u.ID, from, to)
		if err != nil {
			return err
		}
		if s.Total == 0 {
			continue
		}
		msg := mail.Message{
			To:      u.Email,
			Subject: "Your QuizMaster report for " + from.Format("January 2006"),
			Body:    report.EmailBody(u.Name, from, s),
		}
		if err := h.Mailer.Send(ctx, msg); err != nil {
			log.Printf("mail to %s: %v", u.Email, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d monthly reports failed", failed)
	}
	return nil
}

// HandleReportExport materializes a filtered attempt listing as a CSV file
// under the export store, keyed by the export id handed out by the API.
func (h *Handler) HandleReportExport(ctx context.Context, t *asynq.Task) error {
	var p ReportExportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || p.ExportID == "" {
		return fmt.Errorf("payload: %v: %w", err, asynq.SkipRetry)
	}
	rows, err := h.Store.ListAttempts(ctx, quiz.AttemptListOpts{
		QuizID:    p.QuizID,
		ChapterID: p.ChapterID,
		SubjectID: p.SubjectID,
		UserID:    p.UserID,
		From:      p.From,
		To:        p.To,
	})
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, rows); err != nil {
		return err
	}
	return h.Exports.Put(p.ExportID+".csv", &buf)
}

// HandleAttemptsCleanup finalizes expired attempts, drops stale untimed ones
// and prunes old export files.
func (h *Handler) HandleAttemptsCleanup(ctx context.Context, _ *asynq.Task) error {
	finalized, deleted, err := h.Store.CleanupAttempts(ctx, staleAttemptAge)
	if err != nil {
		return err
	}
	pruned := 0
	if h.Exports != nil {
		pruned, _ = h.Exports.Prune(exportMaxAge)
	}
	log.Printf("cleanup: finalized=%d deleted=%d exports_pruned=%d", finalized, deleted, pruned)
	return nil
}

// HandleStatsRefresh recomputes per-quiz stats into the cache.
func (h *Handler) HandleStatsRefresh(ctx context.Context, _ *asynq.Task) error {
	quizzes, err := h.Store.ListQuizzes(ctx, quiz.ListOpts{})
	if err != nil {
		return err
	}
	for _, qs := range quizzes {
		stats, err := h.Store.QuizStats(ctx, qs.ID)
		if err != nil {
			return err
		}
		if err := h.Cache.Set(ctx, "stats:"+qs.ID, stats, cache.TTLStats); err != nil {
			return err
		}
	}
	return nil
}
