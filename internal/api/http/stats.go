package http

import (
	"context"
	"database/sql"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quizmaster-app/quizmaster/internal/cache"
	"github.com/quizmaster-app/quizmaster/internal/quiz"
)

// QuizStatsHandler serves per-quiz aggregates, cached until the hourly
// refresh or a quiz mutation invalidates them.
func QuizStatsHandler(store quiz.Store, c cache.Cache) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id := chi.URLParam(r, "quizID")
		stats, err := cache.GetOrSet(r.Context(), c, "stats:"+id, cache.TTLStats,
			func(ctx context.Context) (quiz.Stats, error) {
				return store.QuizStats(ctx, id)
			})
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, stats)
	}
}

type dashboard struct {
	Users    int `json:"users"`
	Subjects int `json:"subjects"`
	Quizzes  int `json:"quizzes"`
	Attempts int `json:"attempts"`

	RecentAttempts []quiz.AttemptRow `json:"recent_attempts"`
}

// AdminDashboardHandler aggregates platform-wide counters.
func AdminDashboardHandler(store quiz.Store, dbh *sql.DB, c cache.Cache) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		d, err := cache.GetOrSet(r.Context(), c, "dashboard:admin", cache.TTLDashboard,
			func(ctx context.Context) (dashboard, error) {
				var d dashboard
				row := dbh.QueryRowContext(ctx, `
					SELECT (SELECT COUNT(*) FROM users),
					       (SELECT COUNT(*) FROM subjects),
					       (SELECT COUNT(*) FROM quizzes),
					       (SELECT COUNT(*) FROM attempts)`)
				if err := row.Scan(&d.Users, &d.Subjects, &d.Quizzes, &d.Attempts); err != nil {
					return d, err
				}
				recent, err := store.ListAttempts(ctx, quiz.AttemptListOpts{Limit: 5})
				if err != nil {
					return d, err
				}
				if recent == nil {
					recent = []quiz.AttemptRow{}
				}
				d.RecentAttempts = recent
				return d, nil
			})
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, d)
	}
}
