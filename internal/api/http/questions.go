package http

import (
	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quizmaster-app/quizmaster/internal/cache"
	"github.com/quizmaster-app/quizmaster/internal/quiz"
)

type questionReq struct {
	QuizID   string `json:"quiz_id" validate:"required"`
	Text     string `json:"text" validate:"required,min=1,max=2000"`
	Position int    `json:"position" validate:"min=0"`
}

type optionReq struct {
	QuestionID string `json:"question_id" validate:"required"`
	Text       string `json:"text" validate:"required,min=1,max=1000"`
	IsCorrect  bool   `json:"is_correct"`
}

func CreateQuestionHandler(store quiz.Store, c cache.Cache) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req questionReq
		if err := decodeValid(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		q, err := store.CreateQuestion(r.Context(), quiz.Question{
			QuizID: req.QuizID, Text: req.Text, Position: req.Position,
		})
		if err != nil {
			storeError(w, err)
			return
		}
		invalidateQuiz(r.Context(), c, req.QuizID)
		writeJSON(w, nethttp.StatusCreated, q)
	}
}

func UpdateQuestionHandler(store quiz.Store, c cache.Cache) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req questionReq
		if err := decodeValid(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		q := quiz.Question{ID: chi.URLParam(r, "questionID"), QuizID: req.QuizID, Text: req.Text, Position: req.Position}
		if err := store.UpdateQuestion(r.Context(), q); err != nil {
			storeError(w, err)
			return
		}
		invalidateQuiz(r.Context(), c, req.QuizID)
		writeJSON(w, nethttp.StatusOK, q)
	}
}

func DeleteQuestionHandler(store quiz.Store, c cache.Cache) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		quizID := r.URL.Query().Get("quiz_id")
		if err := store.DeleteQuestion(r.Context(), chi.URLParam(r, "questionID")); err != nil {
			storeError(w, err)
			return
		}
		if quizID != "" {
			invalidateQuiz(r.Context(), c, quizID)
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

func CreateOptionHandler(store quiz.Store, c cache.Cache) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req optionReq
		if err := decodeValid(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		o, err := store.CreateOption(r.Context(), quiz.Option{
			QuestionID: req.QuestionID, Text: req.Text, IsCorrect: req.IsCorrect,
		})
		if err != nil {
			storeError(w, err)
			return
		}
		_ = c.DeletePattern(r.Context(), "quiz:*")
		writeJSON(w, nethttp.StatusCreated, o)
	}
}

// UpdateOptionHandler refuses to clear a question's last correct option.
func UpdateOptionHandler(store quiz.Store, c cache.Cache) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req optionReq
		if err := decodeValid(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		o := quiz.Option{ID: chi.URLParam(r, "optionID"), QuestionID: req.QuestionID, Text: req.Text, IsCorrect: req.IsCorrect}
		if err := store.UpdateOption(r.Context(), o); err != nil {
			storeError(w, err)
			return
		}
		_ = c.DeletePattern(r.Context(), "quiz:*")
		writeJSON(w, nethttp.StatusOK, o)
	}
}

func DeleteOptionHandler(store quiz.Store, c cache.Cache) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if err := store.DeleteOption(r.Context(), chi.URLParam(r, "optionID")); err != nil {
			storeError(w, err)
			return
		}
		_ = c.DeletePattern(r.Context(), "quiz:*")
		w.WriteHeader(nethttp.StatusNoContent)
	}
}
