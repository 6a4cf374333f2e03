package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	api "github.com/quizmaster-app/quizmaster/internal/api/http"
	"github.com/quizmaster-app/quizmaster/internal/audit"
	auth "github.com/quizmaster-app/quizmaster/internal/auth/middleware"
	"github.com/quizmaster-app/quizmaster/internal/cache"
	"github.com/quizmaster-app/quizmaster/internal/config"
	"github.com/quizmaster-app/quizmaster/internal/db"
	"github.com/quizmaster-app/quizmaster/internal/quiz"
	"github.com/quizmaster-app/quizmaster/internal/rbac"
	"github.com/quizmaster-app/quizmaster/internal/storage"
	"github.com/quizmaster-app/quizmaster/internal/tasks"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := quiz.NewSQLStore(dbh, cfg.DBDriver)

	if err := auth.EnsureAdmin(ctx, dbh, cfg.AdminEmail, cfg.AdminPassHash); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	// --- Redis: cache, rate limiting, task queue ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	var (
		c       cache.Cache
		limiter cache.Limiter
		jobs    *tasks.Client
	)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("redis unavailable (%v); using in-process cache, jobs disabled", err)
		c = cache.NewMemory()
		limiter = cache.NewMemoryLimiter()
	} else {
		c = cache.NewRedis(rdb)
		limiter = cache.NewRedisLimiter(rdb)
		ac := asynq.NewClient(asynq.RedisClientOpt{
			Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB,
		})
		defer ac.Close()
		jobs = tasks.NewClient(ac)
	}

	exports, err := storage.NewExportStore(cfg.ExportDir)
	if err != nil {
		log.Fatalf("export store: %v", err)
	}

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// Auth endpoints are rate limited per client IP.
	r.Group(func(ar chi.Router) {
		ar.Use(cache.RateLimit(limiter, "auth", 10, time.Minute))
		ar.Post("/auth/register", auth.RegisterHandler(dbh))
		ar.Post("/auth/login", auth.LoginHandler(dbh, authSvc))
	})

	r.Route("/api", func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.Get("/me", api.MeHandler(dbh))
		pr.With(rbac.Require("attempt:view-own")).Get("/me/attempts", api.MyAttemptsHandler(store))
		pr.With(rbac.Require("report:view-own")).Get("/me/report", api.MyReportHandler(store))
		pr.With(rbac.Require("search")).Get("/search", api.SearchHandler(store))

		pr.Route("/subjects", func(sr chi.Router) {
			sr.With(rbac.Require("subject:view")).Get("/", api.ListSubjectsHandler(store))
			sr.With(rbac.Require("subject:view")).Get("/{subjectID}", api.GetSubjectHandler(store))
			sr.With(rbac.Require("subject:manage")).Post("/", api.CreateSubjectHandler(store))
			sr.With(rbac.Require("subject:manage")).Put("/{subjectID}", api.UpdateSubjectHandler(store))
			sr.With(rbac.Require("subject:manage")).Delete("/{subjectID}", api.DeleteSubjectHandler(store))
		})

		pr.Route("/chapters", func(cr chi.Router) {
			cr.With(rbac.Require("subject:view")).Get("/", api.ListChaptersHandler(store))
			cr.With(rbac.Require("subject:manage")).Post("/", api.CreateChapterHandler(store))
			cr.With(rbac.Require("subject:manage")).Put("/{chapterID}", api.UpdateChapterHandler(store))
			cr.With(rbac.Require("subject:manage")).Delete("/{chapterID}", api.DeleteChapterHandler(store))
		})

		pr.Route("/quizzes", func(qr chi.Router) {
			qr.With(rbac.Require("quiz:view")).Get("/", api.ListQuizzesHandler(store))
			qr.With(rbac.Require("quiz:view")).Get("/{quizID}", api.GetQuizHandler(store, c))
			qr.With(rbac.Require("quiz:view")).Get("/{quizID}/stats", api.QuizStatsHandler(store, c))
			qr.With(rbac.Require("quiz:manage")).Post("/", api.CreateQuizHandler(store, c, jobs, cfg.SendNotifications))
			qr.With(rbac.Require("quiz:manage")).Put("/{quizID}", api.UpdateQuizHandler(store, c, jobs, cfg.SendNotifications))
			qr.With(rbac.Require("quiz:manage")).Delete("/{quizID}", api.DeleteQuizHandler(store, c))
			qr.With(rbac.Require("quiz:manage")).Post("/{quizID}/remind", api.TriggerReminderHandler(store, jobs))
			qr.With(rbac.Require("attempt:create")).Post("/{quizID}/attempts", api.StartAttemptHandler(store))
		})

		pr.Route("/questions", func(qr chi.Router) {
			qr.With(rbac.Require("quiz:manage")).Post("/", api.CreateQuestionHandler(store, c))
			qr.With(rbac.Require("quiz:manage")).Put("/{questionID}", api.UpdateQuestionHandler(store, c))
			qr.With(rbac.Require("quiz:manage")).Delete("/{questionID}", api.DeleteQuestionHandler(store, c))
		})

		pr.Route("/options", func(or chi.Router) {
			or.With(rbac.Require("quiz:manage")).Post("/", api.CreateOptionHandler(store, c))
			or.With(rbac.Require("quiz:manage")).Put("/{optionID}", api.UpdateOptionHandler(store, c))
			or.With(rbac.Require("quiz:manage")).Delete("/{optionID}", api.DeleteOptionHandler(store, c))
		})

		pr.Route("/attempts", func(ar chi.Router) {
			ar.With(rbac.Require("attempt:list")).Get("/", api.ListAttemptsHandler(store))
			ar.With(rbac.Require("attempt:view-own")).Get("/{attemptID}", api.GetAttemptHandler(store))
			ar.With(rbac.Require("attempt:save")).Put("/{attemptID}/answers", api.SaveAnswerHandler(store))
			ar.With(rbac.Require("attempt:submit")).Post("/{attemptID}/submit", api.SubmitAttemptHandler(store))
		})

		pr.Route("/reports", func(rr chi.Router) {
			rr.With(rbac.Require("report:view-own")).Get("/me.csv", api.MyCSVHandler(store))
			rr.With(rbac.Require("report:export")).Get("/attempts.csv", api.ExportCSVHandler(store))
			rr.With(rbac.Require("report:export")).Post("/exports", api.CreateExportHandler(jobs))
			rr.With(rbac.Require("report:export")).Get("/exports/{exportID}", api.DownloadExportHandler(exports))
			rr.With(rbac.Require("report:export")).Post("/monthly", api.TriggerMonthlyReportHandler(jobs))
		})

		pr.Route("/users", func(ur chi.Router) {
			ur.With(rbac.Require("user:manage")).Get("/", api.ListUsersHandler(dbh))
			ur.With(rbac.Require("user:manage")).Put("/{userID}/role", api.UpdateUserRoleHandler(dbh))
			ur.With(rbac.Require("user:manage")).Delete("/{userID}", api.DeleteUserHandler(dbh))
		})

		pr.With(rbac.Require("dashboard:view")).Get("/dashboard", api.AdminDashboardHandler(store, dbh, c))
		pr.With(rbac.Require("audit:view")).Get("/events", api.EventsHandler(audit.NewEventRepo(dbh)))
	})

	log.Printf("quizmaster api listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Fatal(srv.ListenAndServe())
}
