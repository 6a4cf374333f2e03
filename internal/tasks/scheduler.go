package tasks

import (
	"fmt"

	"github.com/hibiken/asynq"
)

// Schedule registers the periodic jobs:
//
//	reminder scan     every 15 minutes
//	monthly reports   09:00 on the 1st
//	attempt cleanup   every 6 hours
//	stats refresh     hourly
func Schedule(s *asynq.Scheduler, reminders bool) error {
	entries := []struct {
		spec string
		typ  string
	}{
		{"0 9 1 * *", TypeMonthlyReport},
		{"0 */6 * * *", TypeAttemptsCleanup},
		{"0 * * * *", TypeStatsRefresh},
	}
	if reminders {
		entries = append(entries, struct {
			spec string
			typ  string
		}{"*/15 * * * *", TypeReminderScan})
	}
	for _, e := range entries {
		if _, err := s.Register(e.spec, asynq.NewTask(e.typ, nil)); err != nil {
			return fmt.Errorf("register %s: %w", e.typ, err)
		}
	}
	return nil
}
