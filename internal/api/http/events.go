package http

import (
	nethttp "net/http"

	"github.com/quizmaster-app/quizmaster/internal/audit"
)

// EventsHandler tails the audit log for admins.
func EventsHandler(events *audit.EventRepo) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		out, err := events.Tail(r.Context(), queryInt(r, "limit", 50, 500))
		if err != nil {
			nethttp.Error(w, "db error", nethttp.StatusInternalServerError)
			return
		}
		type eventJSON struct {
			Offset    int64  `json:"offset"`
			Type      string `json:"type"`
			Key       string `json:"key"`
			Data      string `json:"data"`
			CreatedAt int64  `json:"created_at"`
		}
		resp := make([]eventJSON, 0, len(out))
		for _, e := range out {
			resp = append(resp, eventJSON{e.Offset, e.Type, e.Key, e.DataJSON, e.CreatedAt})
		}
		writeJSON(w, nethttp.StatusOK, resp)
	}
}
