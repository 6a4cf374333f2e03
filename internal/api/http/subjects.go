package http

import (
	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quizmaster-app/quizmaster/internal/quiz"
)

type subjectReq struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

func CreateSubjectHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req subjectReq
		if err := decodeValid(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		sub, err := store.CreateSubject(r.Context(), quiz.Subject{Name: req.Name, Description: req.Description})
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, sub)
	}
}

func ListSubjectsHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		subs, err := store.ListSubjects(r.Context())
		if err != nil {
			storeError(w, err)
			return
		}
		if subs == nil {
			subs = []quiz.Subject{}
		}
		writeJSON(w, nethttp.StatusOK, subs)
	}
}

func GetSubjectHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		sub, err := store.GetSubject(r.Context(), chi.URLParam(r, "subjectID"))
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, sub)
	}
}

func UpdateSubjectHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req subjectReq
		if err := decodeValid(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		sub := quiz.Subject{ID: chi.URLParam(r, "subjectID"), Name: req.Name, Description: req.Description}
		if err := store.UpdateSubject(r.Context(), sub); err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, sub)
	}
}

// DeleteSubjectHandler cascades to chapters, quizzes and attempts.
func DeleteSubjectHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if err := store.DeleteSubject(r.Context(), chi.URLParam(r, "subjectID")); err != nil {
			storeError(w, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}
