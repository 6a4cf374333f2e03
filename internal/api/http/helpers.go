package http

import (
	"encoding/json"
	"errors"
	"strconv"

	nethttp "net/http"

	"github.com/go-playground/validator/v10"

	"github.com/quizmaster-app/quizmaster/internal/quiz"
)

// Handlers only — routes remain in main.go

var validate = validator.New()

func writeJSON(w nethttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeValid(r *nethttp.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("bad json")
	}
	return validate.Struct(dst)
}

// storeError maps store sentinels onto HTTP statuses.
func storeError(w nethttp.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quiz.ErrNotFound):
		nethttp.Error(w, "not found", nethttp.StatusNotFound)
	case errors.Is(err, quiz.ErrQuizClosed):
		nethttp.Error(w, "quiz is not open", nethttp.StatusConflict)
	case errors.Is(err, quiz.ErrQuizNotReady):
		nethttp.Error(w, "quiz has no gradable questions", nethttp.StatusConflict)
	case errors.Is(err, quiz.ErrAlreadyCompleted):
		nethttp.Error(w, "quiz already completed", nethttp.StatusConflict)
	case errors.Is(err, quiz.ErrAttemptSubmitted):
		nethttp.Error(w, "attempt already submitted", nethttp.StatusConflict)
	case errors.Is(err, quiz.ErrLastCorrectOption):
		nethttp.Error(w, "question needs at least one correct option", nethttp.StatusConflict)
	default:
		nethttp.Error(w, "db error", nethttp.StatusInternalServerError)
	}
}

func queryInt(r *nethttp.Request, key string, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

func pageOpts(r *nethttp.Request) (limit, offset int) {
	return queryInt(r, "limit", 50, 200), queryInt(r, "offset", 0, 0)
}
