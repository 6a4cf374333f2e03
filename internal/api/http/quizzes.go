package http

import (
	"context"
	"log"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quizmaster-app/quizmaster/internal/cache"
	"github.com/quizmaster-app/quizmaster/internal/quiz"
	"github.com/quizmaster-app/quizmaster/internal/rbac"
	"github.com/quizmaster-app/quizmaster/internal/tasks"
)

type quizReq struct {
	ChapterID      string  `json:"chapter_id" validate:"required"`
	Title          string  `json:"title" validate:"required,min=1,max=200"`
	Description    string  `json:"description" validate:"max=2000"`
	TimeLimitMin   *int    `json:"time_limit_min" validate:"omitempty,min=1,max=1440"`
	PassPercentage float64 `json:"pass_percentage" validate:"min=0,max=100"`
	Scheduled      bool    `json:"scheduled"`
	StartsAt       *int64  `json:"starts_at"`
	EndsAt         *int64  `json:"ends_at"`
}

func (q quizReq) model() quiz.Quiz {
	m := quiz.Quiz{
		ChapterID:      q.ChapterID,
		Title:          q.Title,
		Description:    q.Description,
		TimeLimitMin:   q.TimeLimitMin,
		PassPercentage: q.PassPercentage,
		Scheduled:      q.Scheduled,
		StartsAt:       q.StartsAt,
		EndsAt:         q.EndsAt,
	}
	if m.PassPercentage == 0 {
		m.PassPercentage = 50
	}
	return m
}

func invalidateQuiz(ctx context.Context, c cache.Cache, quizID string) {
	_ = c.Delete(ctx, "quiz:"+quizID, "stats:"+quizID)
	_ = c.DeletePattern(ctx, "dashboard:*")
}

func CreateQuizHandler(store quiz.Store, c cache.Cache, jobs *tasks.Client, notify bool) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req quizReq
		if err := decodeValid(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		if req.Scheduled && req.StartsAt != nil && req.EndsAt != nil && *req.EndsAt <= *req.StartsAt {
			nethttp.Error(w, "ends_at must be after starts_at", nethttp.StatusBadRequest)
			return
		}
		q, err := store.CreateQuiz(r.Context(), req.model())
		if err != nil {
			storeError(w, err)
			return
		}
		_ = c.DeletePattern(r.Context(), "dashboard:*")
		if notify && q.Scheduled {
			if err := jobs.QuizNotification(q.ID); err != nil {
				log.Printf("enqueue notification for %s: %v", q.ID, err)
			}
		}
		writeJSON(w, nethttp.StatusCreated, q)
	}
}

// ListQuizzesHandler shows students only quizzes open right now; admins see
// everything.
func ListQuizzesHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		limit, offset := pageOpts(r)
		opts := quiz.ListOpts{
			SubjectID:     r.URL.Query().Get("subject_id"),
			ChapterID:     r.URL.Query().Get("chapter_id"),
			Q:             r.URL.Query().Get("q"),
			AvailableOnly: rbac.RoleFromContext(r.Context()) != "admin",
			Limit:         limit,
			Offset:        offset,
		}
		out, err := store.ListQuizzes(r.Context(), opts)
		if err != nil {
			storeError(w, err)
			return
		}
		if out == nil {
			out = []quiz.QuizSummary{}
		}
		writeJSON(w, nethttp.StatusOK, out)
	}
}

// GetQuizHandler serves the admin view with the answer key, and a cached
// student view without it.
func GetQuizHandler(store quiz.Store, c cache.Cache) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id := chi.URLParam(r, "quizID")
		if rbac.RoleFromContext(r.Context()) == "admin" {
			q, err := store.GetQuiz(r.Context(), id, true)
			if err != nil {
				storeError(w, err)
				return
			}
			writeJSON(w, nethttp.StatusOK, q)
			return
		}
		q, err := cache.GetOrSet(r.Context(), c, "quiz:"+id, cache.TTLQuiz,
			func(ctx context.Context) (quiz.Quiz, error) {
				return store.GetQuiz(ctx, id, false)
			})
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, q)
	}
}

func UpdateQuizHandler(store quiz.Store, c cache.Cache, jobs *tasks.Client, notify bool) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req quizReq
		if err := decodeValid(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		q := req.model()
		q.ID = chi.URLParam(r, "quizID")
		prev, err := store.GetQuiz(r.Context(), q.ID, false)
		if err != nil {
			storeError(w, err)
			return
		}
		if err := store.UpdateQuiz(r.Context(), q); err != nil {
			storeError(w, err)
			return
		}
		invalidateQuiz(r.Context(), c, q.ID)
		// Rescheduling announces the quiz again.
		rescheduled := q.Scheduled && (!prev.Scheduled ||
			(q.StartsAt != nil && (prev.StartsAt == nil || *prev.StartsAt != *q.StartsAt)))
		if notify && rescheduled {
			if err := jobs.QuizNotification(q.ID); err != nil {
				log.Printf("enqueue notification for %s: %v", q.ID, err)
			}
		}
		writeJSON(w, nethttp.StatusOK, q)
	}
}

func DeleteQuizHandler(store quiz.Store, c cache.Cache) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id := chi.URLParam(r, "quizID")
		if err := store.DeleteQuiz(r.Context(), id); err != nil {
			storeError(w, err)
			return
		}
		invalidateQuiz(r.Context(), c, id)
		w.WriteHeader(nethttp.StatusNoContent)
	}
}
