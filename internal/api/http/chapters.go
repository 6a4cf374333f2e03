package http

import (
	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quizmaster-app/quizmaster/internal/quiz"
)

type chapterReq struct {
	SubjectID   string `json:"subject_id" validate:"required"`
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

func CreateChapterHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req chapterReq
		if err := decodeValid(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		ch, err := store.CreateChapter(r.Context(), quiz.Chapter{
			SubjectID: req.SubjectID, Name: req.Name, Description: req.Description,
		})
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, ch)
	}
}

// ListChaptersHandler filters by ?subject_id= when given.
func ListChaptersHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		chs, err := store.ListChapters(r.Context(), r.URL.Query().Get("subject_id"))
		if err != nil {
			storeError(w, err)
			return
		}
		if chs == nil {
			chs = []quiz.Chapter{}
		}
		writeJSON(w, nethttp.StatusOK, chs)
	}
}

func UpdateChapterHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Name        string `json:"name" validate:"required,min=1,max=200"`
			Description string `json:"description" validate:"max=2000"`
		}
		if err := decodeValid(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		id := chi.URLParam(r, "chapterID")
		cur, err := store.GetChapter(r.Context(), id)
		if err != nil {
			storeError(w, err)
			return
		}
		cur.Name, cur.Description = req.Name, req.Description
		if err := store.UpdateChapter(r.Context(), cur); err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, cur)
	}
}

func DeleteChapterHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if err := store.DeleteChapter(r.Context(), chi.URLParam(r, "chapterID")); err != nil {
			storeError(w, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}
