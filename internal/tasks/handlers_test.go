package tasks

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/quizmaster-app/quizmaster/internal/cache"
	"github.com/quizmaster-app/quizmaster/internal/db"
	"github.com/quizmaster-app/quizmaster/internal/mail"
	"github.com/quizmaster-app/quizmaster/internal/quiz"
	"github.com/quizmaster-app/quizmaster/internal/storage"
)

type fixture struct {
	db      *sql.DB
	store   *quiz.SQLStore
	mailer  *mail.Capture
	cache   *cache.Memory
	exports *storage.ExportStore
	h       *Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:tasks_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	exports, err := storage.NewExportStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		db:      conn,
		store:   quiz.NewSQLStore(conn, "sqlite"),
		mailer:  &mail.Capture{},
		cache:   cache.NewMemory(),
		exports: exports,
	}
	f.h = &Handler{
		Store:   f.store,
		DB:      conn,
		Mailer:  f.mailer,
		Cache:   f.cache,
		Exports: exports,
	}
	return f
}

func (f *fixture) addUser(t *testing.T, name, email, role string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := f.db.Exec(
		`INSERT INTO users (id,name,email,password_hash,role,created_at) VALUES ($1,$2,$3,'x',$4,$5)`,
		id, name, email, role, time.Now().Unix())
	if err != nil {
		t.Fatal(err)
	}
	return id
}

// addQuiz seeds subject/chapter/quiz with two questions, one option each
// marked correct so the quiz is takeable.
func (f *fixture) addQuiz(t *testing.T, title string, mutate func(*quiz.Quiz)) quiz.Quiz {
	t.Helper()
	ctx := context.Background()
	sub, err := f.store.CreateSubject(ctx, quiz.Subject{Name: "Math"})
	if err != nil {
		t.Fatal(err)
	}
	ch, err := f.store.CreateChapter(ctx, quiz.Chapter{SubjectID: sub.ID, Name: "Algebra"})
	if err != nil {
		t.Fatal(err)
	}
	q := quiz.Quiz{ChapterID: ch.ID, Title: title, PassPercentage: 50}
	if mutate != nil {
		mutate(&q)
	}
	q, err = f.store.CreateQuiz(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		qq, err := f.store.CreateQuestion(ctx, quiz.Question{QuizID: q.ID, Text: fmt.Sprintf("q%d", i), Position: i})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.store.CreateOption(ctx, quiz.Option{QuestionID: qq.ID, Text: "yes", IsCorrect: true}); err != nil {
			t.Fatal(err)
		}
		if _, err := f.store.CreateOption(ctx, quiz.Option{QuestionID: qq.ID, Text: "no"}); err != nil {
			t.Fatal(err)
		}
	}
	return q
}

func task(t *testing.T, typ string, payload any) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return asynq.NewTask(typ, data)
}

func TestHandleQuizNotification(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "Asha", "asha@example.com", "student")
	f.addUser(t, "Root", "admin@example.com", "admin")
	q := f.addQuiz(t, "Fractions", nil)

	err := f.h.HandleQuizNotification(context.Background(), task(t, TypeQuizNotification, QuizNotificationPayload{QuizID: q.ID}))
	if err != nil {
		t.Fatal(err)
	}
	sent := f.mailer.Sent()
	if len(sent) != 1 {
		t.Fatalf("want 1 mail (students only), got %d", len(sent))
	}
	if sent[0].To != "asha@example.com" {
		t.Fatalf("to %s", sent[0].To)
	}
	if !strings.Contains(sent[0].Subject, "Fractions") {
		t.Fatalf("subject %q", sent[0].Subject)
	}
	if !strings.Contains(sent[0].Body, "Math") || !strings.Contains(sent[0].Body, "Algebra") {
		t.Fatalf("body missing subject/chapter:\n%s", sent[0].Body)
	}
}

func TestHandleReminderScanDedupes(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "Asha", "asha@example.com", "student")
	starts := time.Now().Add(30 * time.Minute).Unix()
	f.addQuiz(t, "Fractions", func(q *quiz.Quiz) {
		q.Scheduled = true
		q.StartsAt = &starts
	})

	ctx := context.Background()
	if err := f.h.HandleReminderScan(ctx, asynq.NewTask(TypeReminderScan, nil)); err != nil {
		t.Fatal(err)
	}
	if err := f.h.HandleReminderScan(ctx, asynq.NewTask(TypeReminderScan, nil)); err != nil {
		t.Fatal(err)
	}
	if got := len(f.mailer.Sent()); got != 1 {
		t.Fatalf("want 1 reminder after two scans, got %d", got)
	}
}

func TestHandleReminderScanIgnoresFarOff(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "Asha", "asha@example.com", "student")
	starts := time.Now().Add(48 * time.Hour).Unix()
	f.addQuiz(t, "Fractions", func(q *quiz.Quiz) {
		q.Scheduled = true
		q.StartsAt = &starts
	})

	if err := f.h.HandleReminderScan(context.Background(), asynq.NewTask(TypeReminderScan, nil)); err != nil {
		t.Fatal(err)
	}
	if got := len(f.mailer.Sent()); got != 0 {
		t.Fatalf("quiz 48h out should not trigger reminders, got %d", got)
	}
}

func TestHandleStatsRefresh(t *testing.T) {
	f := newFixture(t)
	uid := f.addUser(t, "Asha", "asha@example.com", "student")
	q := f.addQuiz(t, "Fractions", nil)

	ctx := context.Background()
	a, err := f.store.StartAttempt(ctx, q.ID, uid)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.SubmitAttempt(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	if err := f.h.HandleStatsRefresh(ctx, asynq.NewTask(TypeStatsRefresh, nil)); err != nil {
		t.Fatal(err)
	}
	var stats quiz.Stats
	if err := f.cache.Get(ctx, "stats:"+q.ID, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalAttempts != 1 {
		t.Fatalf("stats %+v", stats)
	}
}

func TestHandleReportExport(t *testing.T) {
	f := newFixture(t)
	uid := f.addUser(t, "Asha", "asha@example.com", "student")
	q := f.addQuiz(t, "Fractions", nil)

	ctx := context.Background()
	a, err := f.store.StartAttempt(ctx, q.ID, uid)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.SubmitAttempt(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	p := ReportExportPayload{ExportID: "exp-1", QuizID: q.ID}
	if err := f.h.HandleReportExport(ctx, task(t, TypeReportExport, p)); err != nil {
		t.Fatal(err)
	}
	rc, err := f.exports.Open("exp-1.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	recs, err := csv.NewReader(rc).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 { // header + one attempt
		t.Fatalf("records: %d", len(recs))
	}
	if recs[1][0] != "Asha" || recs[1][2] != "Fractions" {
		t.Fatalf("row: %v", recs[1])
	}
}

func TestHandleMonthlyReportSkipsIdleUsers(t *testing.T) {
	f := newFixture(t)
	uid := f.addUser(t, "Asha", "asha@example.com", "student")
	f.addUser(t, "Bola", "bola@example.com", "student")
	q := f.addQuiz(t, "Fractions", nil)

	// Pin attempts into last month so the default report window covers them.
	lastMonth := time.Now().UTC().AddDate(0, -1, 0)
	f.store.SetClock(func() time.Time { return lastMonth })
	ctx := context.Background()
	a, err := f.store.StartAttempt(ctx, q.ID, uid)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.SubmitAttempt(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	f.store.SetClock(time.Now)

	if err := f.h.HandleMonthlyReport(ctx, asynq.NewTask(TypeMonthlyReport, nil)); err != nil {
		t.Fatal(err)
	}
	sent := f.mailer.Sent()
	if len(sent) != 1 {
		t.Fatalf("want 1 report (Bola has no activity), got %d", len(sent))
	}
	if sent[0].To != "asha@example.com" {
		t.Fatalf("to %s", sent[0].To)
	}
}

func TestHandleAttemptsCleanup(t *testing.T) {
	f := newFixture(t)
	uid := f.addUser(t, "Asha", "asha@example.com", "student")
	q := f.addQuiz(t, "Fractions", nil)

	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)
	f.store.SetClock(func() time.Time { return old })
	if _, err := f.store.StartAttempt(ctx, q.ID, uid); err != nil {
		t.Fatal(err)
	}
	f.store.SetClock(time.Now)

	if err := f.h.HandleAttemptsCleanup(ctx, asynq.NewTask(TypeAttemptsCleanup, nil)); err != nil {
		t.Fatal(err)
	}
	rows, err := f.store.ListAttempts(ctx, quiz.AttemptListOpts{UserID: uid})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatalf("stale untimed attempt should be deleted, got %d rows", len(rows))
	}
}
