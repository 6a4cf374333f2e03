// Package tasks defines the background jobs shared by the API server
// (producer) and the worker (consumer). Jobs ride on asynq over the same
// Redis instance the cache uses.
package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeQuizNotification = "email:quiz_notification"
	TypeQuizReminder     = "email:quiz_reminder"
	TypeMonthlyReport    = "email:monthly_report"
	TypeReportExport     = "report:export"
	TypeAttemptsCleanup  = "attempts:cleanup"
	TypeStatsRefresh     = "stats:refresh"
	TypeReminderScan     = "scan:reminders"
)

type QuizNotificationPayload struct {
	QuizID string `json:"quiz_id"`
}

type QuizReminderPayload struct {
	QuizID string `json:"quiz_id"`
}

type MonthlyReportPayload struct {
	// Month is any instant inside the month to report on, unix seconds.
	Month int64 `json:"month"`
}

type ReportExportPayload struct {
	ExportID  string `json:"export_id"`
	QuizID    string `json:"quiz_id,omitempty"`
	ChapterID string `json:"chapter_id,omitempty"`
	SubjectID string `json:"subject_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	From      int64  `json:"from,omitempty"`
	To        int64  `json:"to,omitempty"`
}

// Client enqueues jobs. A nil Client drops them, which keeps single-process
// dev setups working without a worker.
type Client struct {
	c *asynq.Client
}

func NewClient(c *asynq.Client) *Client { return &Client{c: c} }

func (c *Client) enqueue(typ string, payload any, opts ...asynq.Option) error {
	if c == nil || c.c == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = c.c.Enqueue(asynq.NewTask(typ, data), opts...)
	return err
}

func (c *Client) QuizNotification(quizID string) error {
	return c.enqueue(TypeQuizNotification, QuizNotificationPayload{QuizID: quizID})
}

func (c *Client) QuizReminder(quizID string) error {
	return c.enqueue(TypeQuizReminder, QuizReminderPayload{QuizID: quizID})
}

func (c *Client) MonthlyReport(month int64) error {
	return c.enqueue(TypeMonthlyReport, MonthlyReportPayload{Month: month})
}

func (c *Client) ReportExport(p ReportExportPayload) error {
	return c.enqueue(TypeReportExport, p, asynq.Timeout(5*time.Minute))
}

func (c *Client) StatsRefresh() error {
	return c.enqueue(TypeStatsRefresh, struct{}{})
}
