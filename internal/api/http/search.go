package http

import (
	"strings"

	nethttp "net/http"

	"github.com/quizmaster-app/quizmaster/internal/quiz"
	"github.com/quizmaster-app/quizmaster/internal/rbac"
)

// SearchHandler searches quizzes and subjects by name. Admins also get
// matching users.
func SearchHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			nethttp.Error(w, "missing q", nethttp.StatusBadRequest)
			return
		}
		includeUsers := rbac.RoleFromContext(r.Context()) == "admin"
		res, err := store.Search(r.Context(), q, includeUsers)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, res)
	}
}
