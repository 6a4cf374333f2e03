package http

import (
	"io"
	"strconv"
	"time"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/quizmaster-app/quizmaster/internal/auth/middleware"
	"github.com/quizmaster-app/quizmaster/internal/quiz"
	"github.com/quizmaster-app/quizmaster/internal/report"
	"github.com/quizmaster-app/quizmaster/internal/storage"
	"github.com/quizmaster-app/quizmaster/internal/tasks"
)

func queryUnix(r *nethttp.Request, key string) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func attemptFilter(r *nethttp.Request) quiz.AttemptListOpts {
	return quiz.AttemptListOpts{
		QuizID:    r.URL.Query().Get("quiz_id"),
		ChapterID: r.URL.Query().Get("chapter_id"),
		SubjectID: r.URL.Query().Get("subject_id"),
		UserID:    r.URL.Query().Get("user_id"),
		From:      queryUnix(r, "from"),
		To:        queryUnix(r, "to"),
	}
}

// ExportCSVHandler streams the filtered attempt listing as CSV.
func ExportCSVHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		rows, err := store.ListAttempts(r.Context(), attemptFilter(r))
		if err != nil {
			storeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="attempts.csv"`)
		_ = report.WriteCSV(w, rows)
	}
}

// CreateExportHandler queues a CSV export and returns its id. Large exports
// run on the worker; the client polls the download URL.
func CreateExportHandler(jobs *tasks.Client) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		f := attemptFilter(r)
		id := uuid.NewString()
		err := jobs.ReportExport(tasks.ReportExportPayload{
			ExportID:  id,
			QuizID:    f.QuizID,
			ChapterID: f.ChapterID,
			SubjectID: f.SubjectID,
			UserID:    f.UserID,
			From:      f.From,
			To:        f.To,
		})
		if err != nil {
			nethttp.Error(w, "enqueue failed", nethttp.StatusInternalServerError)
			return
		}
		writeJSON(w, nethttp.StatusAccepted, map[string]string{
			"export_id": id,
			"download":  "/api/reports/exports/" + id,
		})
	}
}

// DownloadExportHandler serves a finished export, or 202 while the worker is
// still on it.
func DownloadExportHandler(exports *storage.ExportStore) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		key := chi.URLParam(r, "exportID") + ".csv"
		rc, err := exports.Open(key)
		if err != nil {
			w.WriteHeader(nethttp.StatusAccepted)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+key+`"`)
		_, _ = io.Copy(w, rc)
	}
}

// MyCSVHandler streams the caller's own attempt history as CSV.
func MyCSVHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		rows, err := store.ListAttempts(r.Context(), quiz.AttemptListOpts{
			UserID: authmw.SubjectFromContext(r.Context()),
			From:   queryUnix(r, "from"),
			To:     queryUnix(r, "to"),
		})
		if err != nil {
			storeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="my-attempts.csv"`)
		_ = report.WriteCSV(w, rows)
	}
}

// TriggerMonthlyReportHandler lets an admin kick off the monthly mail run
// without waiting for the schedule.
func TriggerMonthlyReportHandler(jobs *tasks.Client) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if err := jobs.MonthlyReport(queryUnix(r, "month")); err != nil {
			nethttp.Error(w, "enqueue failed", nethttp.StatusInternalServerError)
			return
		}
		w.WriteHeader(nethttp.StatusAccepted)
	}
}

// TriggerReminderHandler queues a reminder mail for one quiz.
func TriggerReminderHandler(store quiz.Store, jobs *tasks.Client) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id := chi.URLParam(r, "quizID")
		if _, err := store.GetQuiz(r.Context(), id, false); err != nil {
			storeError(w, err)
			return
		}
		if err := jobs.QuizReminder(id); err != nil {
			nethttp.Error(w, "enqueue failed", nethttp.StatusInternalServerError)
			return
		}
		w.WriteHeader(nethttp.StatusAccepted)
	}
}

// MyReportHandler summarizes the caller's attempts over ?from/?to, defaulting
// to the current month.
func MyReportHandler(store quiz.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		from, to := report.MonthRange(time.Now().UTC())
		if v := queryUnix(r, "from"); v != 0 {
			from = time.Unix(v, 0).UTC()
		}
		if v := queryUnix(r, "to"); v != 0 {
			to = time.Unix(v, 0).UTC()
		}
		s, err := report.Build(r.Context(), store, authmw.SubjectFromContext(r.Context()), from, to)
		if err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, s)
	}
}
