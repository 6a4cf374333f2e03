// The worker runs background jobs: notification and reminder email, monthly
// reports, CSV exports, attempt cleanup and stats refresh. It shares Redis
// with the API server, which enqueues on-demand jobs; periodic ones come from
// the embedded scheduler.
package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	auth "github.com/quizmaster-app/quizmaster/internal/auth/middleware"
	"github.com/quizmaster-app/quizmaster/internal/cache"
	"github.com/quizmaster-app/quizmaster/internal/config"
	"github.com/quizmaster-app/quizmaster/internal/db"
	"github.com/quizmaster-app/quizmaster/internal/mail"
	"github.com/quizmaster-app/quizmaster/internal/quiz"
	"github.com/quizmaster-app/quizmaster/internal/storage"
	"github.com/quizmaster-app/quizmaster/internal/tasks"
)

func main() {
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	if err := auth.EnsureAdmin(ctx, dbh, cfg.AdminEmail, cfg.AdminPassHash); err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	store := quiz.NewSQLStore(dbh, cfg.DBDriver)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	var mailer mail.Mailer
	switch cfg.MailDriver {
	case "smtp":
		mailer = mail.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	default:
		mailer = mail.Console{}
	}

	exports, err := storage.NewExportStore(cfg.ExportDir)
	if err != nil {
		log.Fatalf("export store: %v", err)
	}

	h := &tasks.Handler{
		Store:        store,
		DB:           dbh,
		Mailer:       mailer,
		Cache:        cache.NewRedis(rdb),
		Exports:      exports,
		ReminderLead: cfg.ReminderLead,
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	sched := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})
	if err := tasks.Schedule(sched, cfg.SendReminders); err != nil {
		log.Fatalf("schedule: %v", err)
	}
	go func() {
		if err := sched.Run(); err != nil {
			log.Fatalf("scheduler: %v", err)
		}
	}()

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{"default": 1},
	})
	mux := asynq.NewServeMux()
	h.Register(mux)

	log.Printf("quizmaster worker up (mail=%s, db=%s)", cfg.MailDriver, cfg.DBDriver)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
