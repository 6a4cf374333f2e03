package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	nethttp "net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/quizmaster-app/quizmaster/internal/auth/middleware"
	"github.com/quizmaster-app/quizmaster/internal/cache"
	"github.com/quizmaster-app/quizmaster/internal/db"
	"github.com/quizmaster-app/quizmaster/internal/quiz"
	"github.com/quizmaster-app/quizmaster/internal/rbac"
)

type testAPI struct {
	t     *testing.T
	db    *sql.DB
	store *quiz.SQLStore
	cache *cache.Memory
	mux   *chi.Mux
}

// identity middleware for tests: trusts X-Sub / X-Role headers in place of a
// bearer token.
func fakeAuth(next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		ctx := authmw.WithSubject(r.Context(), r.Header.Get("X-Sub"))
		ctx = rbac.WithRole(ctx, r.Header.Get("X-Role"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	dsn := fmt.Sprintf("file:api_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	a := &testAPI{
		t:     t,
		db:    conn,
		store: quiz.NewSQLStore(conn, "sqlite"),
		cache: cache.NewMemory(),
	}

	r := chi.NewRouter()
	r.Use(fakeAuth)
	r.With(rbac.Require("subject:manage")).Post("/subjects", CreateSubjectHandler(a.store))
	r.With(rbac.Require("subject:view")).Get("/subjects", ListSubjectsHandler(a.store))
	r.With(rbac.Require("quiz:view")).Get("/quizzes", ListQuizzesHandler(a.store))
	r.With(rbac.Require("quiz:view")).Get("/quizzes/{quizID}", GetQuizHandler(a.store, a.cache))
	r.With(rbac.Require("attempt:create")).Post("/quizzes/{quizID}/attempts", StartAttemptHandler(a.store))
	r.With(rbac.Require("attempt:save")).Put("/attempts/{attemptID}/answers", SaveAnswerHandler(a.store))
	r.With(rbac.Require("attempt:submit")).Post("/attempts/{attemptID}/submit", SubmitAttemptHandler(a.store))
	r.With(rbac.Require("attempt:view-own")).Get("/attempts/{attemptID}", GetAttemptHandler(a.store))
	r.With(rbac.Require("report:export")).Get("/reports/attempts.csv", ExportCSVHandler(a.store))
	a.mux = r
	return a
}

func (a *testAPI) user(name, role string) string {
	a.t.Helper()
	id := uuid.NewString()
	_, err := a.db.Exec(
		`INSERT INTO users (id,name,email,password_hash,role,created_at) VALUES ($1,$2,$3,'x',$4,$5)`,
		id, name, name+"@example.com", role, time.Now().Unix())
	if err != nil {
		a.t.Fatal(err)
	}
	return id
}

func (a *testAPI) seedQuiz() (quiz.Quiz, []string) {
	a.t.Helper()
	ctx := context.Background()
	sub, err := a.store.CreateSubject(ctx, quiz.Subject{Name: "Math"})
	if err != nil {
		a.t.Fatal(err)
	}
	ch, err := a.store.CreateChapter(ctx, quiz.Chapter{SubjectID: sub.ID, Name: "Algebra"})
	if err != nil {
		a.t.Fatal(err)
	}
	q, err := a.store.CreateQuiz(ctx, quiz.Quiz{ChapterID: ch.ID, Title: "Fractions", PassPercentage: 50})
	if err != nil {
		a.t.Fatal(err)
	}
	var correct []string
	for i := 0; i < 2; i++ {
		qq, err := a.store.CreateQuestion(ctx, quiz.Question{QuizID: q.ID, Text: fmt.Sprintf("q%d", i)})
		if err != nil {
			a.t.Fatal(err)
		}
		c, err := a.store.CreateOption(ctx, quiz.Option{QuestionID: qq.ID, Text: "yes", IsCorrect: true})
		if err != nil {
			a.t.Fatal(err)
		}
		if _, err := a.store.CreateOption(ctx, quiz.Option{QuestionID: qq.ID, Text: "no"}); err != nil {
			a.t.Fatal(err)
		}
		correct = append(correct, c.ID)
		q.Questions = append(q.Questions, quiz.Question{ID: qq.ID})
	}
	return q, correct
}

func (a *testAPI) do(method, path, sub, role string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("X-Sub", sub)
	req.Header.Set("X-Role", role)
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

func TestCreateSubjectValidation(t *testing.T) {
	a := newTestAPI(t)
	if rec := a.do("POST", "/subjects", "admin1", "admin", map[string]string{}); rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("missing name: %d", rec.Code)
	}
	rec := a.do("POST", "/subjects", "admin1", "admin", map[string]string{"name": "Math"})
	if rec.Code != nethttp.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	if rec := a.do("POST", "/subjects", "stud1", "student", map[string]string{"name": "Nope"}); rec.Code != nethttp.StatusForbidden {
		t.Fatalf("student create: %d", rec.Code)
	}
}

func TestGetQuizStripsKeyForStudents(t *testing.T) {
	a := newTestAPI(t)
	q, _ := a.seedQuiz()

	rec := a.do("GET", "/quizzes/"+q.ID, "stud1", "student", nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `"is_correct":true`) {
		t.Fatal("student payload leaked the answer key")
	}

	rec = a.do("GET", "/quizzes/"+q.ID, "admin1", "admin", nil)
	if !strings.Contains(rec.Body.String(), `"is_correct":true`) {
		t.Fatal("admin payload lost the answer key")
	}
}

func TestAttemptFlow(t *testing.T) {
	a := newTestAPI(t)
	uid := a.user("asha", "student")
	q, correct := a.seedQuiz()

	rec := a.do("POST", "/quizzes/"+q.ID+"/attempts", uid, "student", nil)
	if rec.Code != nethttp.StatusCreated {
		t.Fatalf("start: %d %s", rec.Code, rec.Body)
	}
	var att quiz.Attempt
	if err := json.Unmarshal(rec.Body.Bytes(), &att); err != nil {
		t.Fatal(err)
	}

	rec = a.do("PUT", "/attempts/"+att.ID+"/answers", uid, "student",
		map[string]string{"question_id": q.Questions[0].ID, "option_id": correct[0]})
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("answer: %d %s", rec.Code, rec.Body)
	}

	// Another student cannot touch the attempt.
	other := a.user("bola", "student")
	rec = a.do("POST", "/attempts/"+att.ID+"/submit", other, "student", nil)
	if rec.Code != nethttp.StatusForbidden {
		t.Fatalf("foreign submit: %d", rec.Code)
	}

	rec = a.do("POST", "/attempts/"+att.ID+"/submit", uid, "student", nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &att); err != nil {
		t.Fatal(err)
	}
	if att.Score != 50 {
		t.Fatalf("score %v", att.Score)
	}

	// Double start after completion conflicts.
	rec = a.do("POST", "/quizzes/"+q.ID+"/attempts", uid, "student", nil)
	if rec.Code != nethttp.StatusConflict {
		t.Fatalf("retake: %d", rec.Code)
	}

	// Admin can read it; the other student cannot.
	if rec := a.do("GET", "/attempts/"+att.ID, "admin1", "admin", nil); rec.Code != nethttp.StatusOK {
		t.Fatalf("admin get: %d", rec.Code)
	}
	if rec := a.do("GET", "/attempts/"+att.ID, other, "student", nil); rec.Code != nethttp.StatusForbidden {
		t.Fatalf("foreign get: %d", rec.Code)
	}
}

func TestExportCSVRowsMatchScope(t *testing.T) {
	a := newTestAPI(t)
	q, correct := a.seedQuiz()

	for i := 0; i < 3; i++ {
		uid := a.user(fmt.Sprintf("u%d", i), "student")
		att, err := a.store.StartAttempt(context.Background(), q.ID, uid)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := a.store.SaveAnswer(context.Background(), att.ID, q.Questions[0].ID, correct[0]); err != nil {
			t.Fatal(err)
		}
		if _, err := a.store.SubmitAttempt(context.Background(), att.ID); err != nil {
			t.Fatal(err)
		}
	}

	rec := a.do("GET", "/reports/attempts.csv?quiz_id="+q.ID, "admin1", "admin", nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("export: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("content type %q", ct)
	}
	recs, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 4 { // header + 3 attempts
		t.Fatalf("rows %d", len(recs))
	}
}

func TestListQuizzesRespectsAvailability(t *testing.T) {
	a := newTestAPI(t)
	q, _ := a.seedQuiz()

	// Close the quiz by scheduling it in the future.
	starts := time.Now().Add(time.Hour).Unix()
	q.Scheduled = true
	q.StartsAt = &starts
	if err := a.store.UpdateQuiz(context.Background(), q); err != nil {
		t.Fatal(err)
	}

	rec := a.do("GET", "/quizzes", "stud1", "student", nil)
	var got []quiz.QuizSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("student saw closed quiz: %v", got)
	}

	rec = a.do("GET", "/quizzes", "admin1", "admin", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("admin should see all quizzes: %v", got)
	}
}
