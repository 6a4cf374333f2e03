package http

import (
	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/quizmaster-app/quizmaster/internal/auth/middleware"
	"github.com/quizmaster-app/quizmaster/internal/quiz"
	"github.com/quizmaster-app/quizmaster/internal/rbac"
)

// StartAttemptHandler opens an attempt for the caller. One completed attempt
// per quiz; a fresh start replaces any stale in-progress one.
func StartAttemptHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		a, err := store.StartAttempt(r.Context(), chi.URLParam(r, "quizID"), userID)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, a)
	}
}

type answerReq struct {
	QuestionID string `json:"question_id" validate:"required"`
	OptionID   string `json:"option_id" validate:"required"`
}

// SaveAnswerHandler upserts one answer. Saving again for the same question
// replaces the earlier choice.
func SaveAnswerHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		a, ok := ownAttempt(w, r, store)
		if !ok {
			return
		}
		var req answerReq
		if err := decodeValid(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		a, err := store.SaveAnswer(r.Context(), a.ID, req.QuestionID, req.OptionID)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, a)
	}
}

func SubmitAttemptHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		a, ok := ownAttempt(w, r, store)
		if !ok {
			return
		}
		a, err := store.SubmitAttempt(r.Context(), a.ID)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, a)
	}
}

// GetAttemptHandler serves an attempt to its owner or to an admin.
func GetAttemptHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		a, err := store.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			storeError(w, err)
			return
		}
		if a.UserID != authmw.SubjectFromContext(r.Context()) && rbac.RoleFromContext(r.Context()) != "admin" {
			nethttp.Error(w, "forbidden", nethttp.StatusForbidden)
			return
		}
		writeJSON(w, nethttp.StatusOK, a)
	}
}

// ListAttemptsHandler is the admin listing with subject/chapter/quiz/user
// filters.
func ListAttemptsHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		limit, offset := pageOpts(r)
		rows, err := store.ListAttempts(r.Context(), quiz.AttemptListOpts{
			QuizID:    r.URL.Query().Get("quiz_id"),
			ChapterID: r.URL.Query().Get("chapter_id"),
			SubjectID: r.URL.Query().Get("subject_id"),
			UserID:    r.URL.Query().Get("user_id"),
			Status:    r.URL.Query().Get("status"),
			Limit:     limit,
			Offset:    offset,
		})
		if err != nil {
			storeError(w, err)
			return
		}
		if rows == nil {
			rows = []quiz.AttemptRow{}
		}
		writeJSON(w, nethttp.StatusOK, rows)
	}
}

// MyAttemptsHandler lists the caller's own history.
func MyAttemptsHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		limit, offset := pageOpts(r)
		rows, err := store.ListAttempts(r.Context(), quiz.AttemptListOpts{
			UserID: authmw.SubjectFromContext(r.Context()),
			Status: r.URL.Query().Get("status"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			storeError(w, err)
			return
		}
		if rows == nil {
			rows = []quiz.AttemptRow{}
		}
		writeJSON(w, nethttp.StatusOK, rows)
	}
}

func ownAttempt(w nethttp.ResponseWriter, r *nethttp.Request, store quiz.Store) (quiz.Attempt, bool) {
	a, err := store.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		storeError(w, err)
		return quiz.Attempt{}, false
	}
	if a.UserID != authmw.SubjectFromContext(r.Context()) {
		nethttp.Error(w, "forbidden", nethttp.StatusForbidden)
		return quiz.Attempt{}, false
	}
	return a, true
}
