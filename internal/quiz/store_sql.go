package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quizmaster-app/quizmaster/internal/audit"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
	events *audit.EventRepo
	now    func() time.Time
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{
		db:     db,
		driver: driver,
		events: audit.NewEventRepo(db),
		now:    time.Now,
	}
}

// SetClock overrides the store's time source. Tests pin it to exercise
// scheduling windows and deadlines deterministically.
func (s *SQLStore) SetClock(now func() time.Time) { s.now = now }

func newID() string { return uuid.NewString() }

// ---- Subjects ----

func (s *SQLStore) CreateSubject(ctx context.Context, sub Subject) (Subject, error) {
	if sub.ID == "" {
		sub.ID = newID()
	}
	sub.CreatedAt = s.now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subjects (id,name,description,created_at) VALUES ($1,$2,$3,$4)`,
		sub.ID, sub.Name, sub.Description, sub.CreatedAt)
	return sub, err
}

func (s *SQLStore) UpdateSubject(ctx context.Context, sub Subject) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subjects SET name=$1, description=$2 WHERE id=$3`,
		sub.Name, sub.Description, sub.ID)
	if err != nil {
		return err
	}
	return errIfNoRows(res)
}

func (s *SQLStore) GetSubject(ctx context.Context, id string) (Subject, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,name,description,created_at FROM subjects WHERE id=$1`, id)
	var sub Subject
	if err := row.Scan(&sub.ID, &sub.Name, &sub.Description, &sub.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Subject{}, ErrNotFound
		}
		return Subject{}, err
	}
	return sub, nil
}

func (s *SQLStore) ListSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,name,description,created_at FROM subjects ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Subject{}
	for rows.Next() {
		var sub Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Description, &sub.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteSubject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subjects WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if err := errIfNoRows(res); err != nil {
		return err
	}
	_ = s.events.Append(ctx, audit.TypeCatalogDeleted, id, map[string]string{"kind": "subject"})
	return nil
}

// ---- Chapters ----

func (s *SQLStore) CreateChapter(ctx context.Context, c Chapter) (Chapter, error) {
	if err := s.exists(ctx, "subjects", c.SubjectID); err != nil {
		return Chapter{}, err
	}
	if c.ID == "" {
		c.ID = newID()
	}
	c.CreatedAt = s.now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chapters (id,subject_id,name,description,created_at) VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.SubjectID, c.Name, c.Description, c.CreatedAt)
	return c, err
}

func (s *SQLStore) UpdateChapter(ctx context.Context, c Chapter) error {
	if err := s.exists(ctx, "subjects", c.SubjectID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE chapters SET name=$1, description=$2, subject_id=$3 WHERE id=$4`,
		c.Name, c.Description, c.SubjectID, c.ID)
	if err != nil {
		return err
	}
	return errIfNoRows(res)
}

func (s *SQLStore) GetChapter(ctx context.Context, id string) (Chapter, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,subject_id,name,description,created_at FROM chapters WHERE id=$1`, id)
	var c Chapter
	if err := row.Scan(&c.ID, &c.SubjectID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chapter{}, ErrNotFound
		}
		return Chapter{}, err
	}
	return c, nil
}

func (s *SQLStore) ListChapters(ctx context.Context, subjectID string) ([]Chapter, error) {
	q := `SELECT id,subject_id,name,description,created_at FROM chapters`
	args := []any{}
	if subjectID != "" {
		q += ` WHERE subject_id=$1`
		args = append(args, subjectID)
	}
	q += ` ORDER BY name`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Chapter{}
	for rows.Next() {
		var c Chapter
		if err := rows.Scan(&c.ID, &c.SubjectID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteChapter(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chapters WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if err := errIfNoRows(res); err != nil {
		return err
	}
	_ = s.events.Append(ctx, audit.TypeCatalogDeleted, id, map[string]string{"kind": "chapter"})
	return nil
}

// ---- Quizzes ----

func (s *SQLStore) CreateQuiz(ctx context.Context, q Quiz) (Quiz, error) {
	if err := s.exists(ctx, "chapters", q.ChapterID); err != nil {
		return Quiz{}, err
	}
	if q.ID == "" {
		q.ID = newID()
	}
	q.CreatedAt = s.now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quizzes (id,chapter_id,title,description,time_limit_min,pass_percentage,scheduled,starts_at,ends_at,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		q.ID, q.ChapterID, q.Title, q.Description, q.TimeLimitMin, q.PassPercentage,
		q.Scheduled, q.StartsAt, q.EndsAt, q.CreatedAt)
	if err != nil {
		return Quiz{}, err
	}
	if q.Scheduled && q.StartsAt != nil {
		_ = s.events.Append(ctx, audit.TypeQuizScheduled, q.ID,
			map[string]any{"starts_at": *q.StartsAt})
	}
	return q, nil
}

func (s *SQLStore) UpdateQuiz(ctx context.Context, q Quiz) error {
	if err := s.exists(ctx, "chapters", q.ChapterID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE quizzes SET chapter_id=$1, title=$2, description=$3, time_limit_min=$4,
		        pass_percentage=$5, scheduled=$6, starts_at=$7, ends_at=$8
		 WHERE id=$9`,
		q.ChapterID, q.Title, q.Description, q.TimeLimitMin, q.PassPercentage,
		q.Scheduled, q.StartsAt, q.EndsAt, q.ID)
	if err != nil {
		return err
	}
	return errIfNoRows(res)
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string, includeKey bool) (Quiz, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,chapter_id,title,description,time_limit_min,pass_percentage,scheduled,starts_at,ends_at,created_at
		 FROM quizzes WHERE id=$1`, id)
	var q Quiz
	if err := row.Scan(&q.ID, &q.ChapterID, &q.Title, &q.Description, &q.TimeLimitMin,
		&q.PassPercentage, &q.Scheduled, &q.StartsAt, &q.EndsAt, &q.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrNotFound
		}
		return Quiz{}, err
	}
	qs, err := s.quizQuestions(ctx, id, includeKey)
	if err != nil {
		return Quiz{}, err
	}
	q.Questions = qs
	return q, nil
}

func (s *SQLStore) quizQuestions(ctx context.Context, quizID string, includeKey bool) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,quiz_id,text,position FROM questions WHERE quiz_id=$1 ORDER BY position, id`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	qs := []Question{}
	idx := map[string]int{}
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Text, &q.Position); err != nil {
			return nil, err
		}
		idx[q.ID] = len(qs)
		qs = append(qs, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orows, err := s.db.QueryContext(ctx,
		`SELECT o.id,o.question_id,o.text,o.is_correct
		   FROM options o JOIN questions q ON q.id=o.question_id
		  WHERE q.quiz_id=$1 ORDER BY o.id`, quizID)
	if err != nil {
		return nil, err
	}
	defer orows.Close()
	for orows.Next() {
		var o Option
		if err := orows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect); err != nil {
			return nil, err
		}
		if !includeKey {
			o.IsCorrect = false
		}
		if i, ok := idx[o.QuestionID]; ok {
			qs[i].Options = append(qs[i].Options, o)
		}
	}
	return qs, orows.Err()
}

func (s *SQLStore) ListQuizzes(ctx context.Context, opts ListOpts) ([]QuizSummary, error) {
	sqlStr := `
		SELECT q.id, q.chapter_id, c.name, c.subject_id, sub.name,
		       q.title, q.time_limit_min, q.pass_percentage, q.scheduled, q.starts_at, q.ends_at,
		       (SELECT COUNT(*) FROM questions qu WHERE qu.quiz_id=q.id)
		  FROM quizzes q
		  JOIN chapters c ON c.id=q.chapter_id
		  JOIN subjects sub ON sub.id=c.subject_id
		 WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if opts.SubjectID != "" {
		sqlStr += ` AND sub.id=` + arg(opts.SubjectID)
	}
	if opts.ChapterID != "" {
		sqlStr += ` AND c.id=` + arg(opts.ChapterID)
	}
	if opts.Q != "" {
		p := arg("%" + strings.ToLower(opts.Q) + "%")
		sqlStr += ` AND (lower(q.title) LIKE ` + p + ` OR lower(q.description) LIKE ` + p + `)`
	}
	if opts.AvailableOnly {
		now := arg(s.now().Unix())
		sqlStr += ` AND (NOT q.scheduled OR ((q.starts_at IS NULL OR q.starts_at <= ` + now +
			`) AND (q.ends_at IS NULL OR q.ends_at >= ` + now + `)))`
	}
	sqlStr += ` ORDER BY sub.name, c.name, q.title`
	if opts.Limit > 0 {
		sqlStr += ` LIMIT ` + arg(opts.Limit) + ` OFFSET ` + arg(opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []QuizSummary{}
	for rows.Next() {
		var qs QuizSummary
		if err := rows.Scan(&qs.ID, &qs.ChapterID, &qs.ChapterName, &qs.SubjectID, &qs.SubjectName,
			&qs.Title, &qs.TimeLimitMin, &qs.PassPercentage, &qs.Scheduled, &qs.StartsAt, &qs.EndsAt,
			&qs.QuestionCount); err != nil {
			return nil, err
		}
		out = append(out, qs)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteQuiz(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if err := errIfNoRows(res); err != nil {
		return err
	}
	_ = s.events.Append(ctx, audit.TypeCatalogDeleted, id, map[string]string{"kind": "quiz"})
	return nil
}

// ---- Questions and options ----

func (s *SQLStore) CreateQuestion(ctx context.Context, q Question) (Question, error) {
	if err := s.exists(ctx, "quizzes", q.QuizID); err != nil {
		return Question{}, err
	}
	if q.ID == "" {
		q.ID = newID()
	}
	if q.Position == 0 {
		_ = s.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position),0)+1 FROM questions WHERE quiz_id=$1`, q.QuizID).
			Scan(&q.Position)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO questions (id,quiz_id,text,position) VALUES ($1,$2,$3,$4)`,
		q.ID, q.QuizID, q.Text, q.Position)
	return q, err
}

func (s *SQLStore) UpdateQuestion(ctx context.Context, q Question) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE questions SET text=$1, position=$2 WHERE id=$3`, q.Text, q.Position, q.ID)
	if err != nil {
		return err
	}
	return errIfNoRows(res)
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return errIfNoRows(res)
}

func (s *SQLStore) CreateOption(ctx context.Context, o Option) (Option, error) {
	if err := s.exists(ctx, "questions", o.QuestionID); err != nil {
		return Option{}, err
	}
	if o.ID == "" {
		o.ID = newID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO options (id,question_id,text,is_correct) VALUES ($1,$2,$3,$4)`,
		o.ID, o.QuestionID, o.Text, o.IsCorrect)
	return o, err
}

func (s *SQLStore) UpdateOption(ctx context.Context, o Option) error {
	if !o.IsCorrect {
		last, err := s.isLastCorrect(ctx, o.ID)
		if err != nil {
			return err
		}
		if last {
			return ErrLastCorrectOption
		}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE options SET text=$1, is_correct=$2 WHERE id=$3`, o.Text, o.IsCorrect, o.ID)
	if err != nil {
		return err
	}
	return errIfNoRows(res)
}

func (s *SQLStore) DeleteOption(ctx context.Context, id string) error {
	last, err := s.isLastCorrect(ctx, id)
	if err != nil {
		return err
	}
	if last {
		return ErrLastCorrectOption
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM options WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return errIfNoRows(res)
}

// isLastCorrect reports whether the option is the only correct one left on
// its question.
func (s *SQLStore) isLastCorrect(ctx context.Context, optionID string) (bool, error) {
	var questionID string
	var correct bool
	err := s.db.QueryRowContext(ctx,
		`SELECT question_id, is_correct FROM options WHERE id=$1`, optionID).
		Scan(&questionID, &correct)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if !correct {
		return false, nil
	}
	var others int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM options WHERE question_id=$1 AND is_correct AND id<>$2`,
		questionID, optionID).Scan(&others)
	if err != nil {
		return false, err
	}
	return others == 0, nil
}

// ---- Quiz-taking ----

func (s *SQLStore) StartAttempt(ctx context.Context, quizID, userID string) (Attempt, error) {
	q, err := s.quizRow(ctx, quizID)
	if err != nil {
		return Attempt{}, err
	}
	now := s.now()
	if !q.Available(now) {
		return Attempt{}, ErrQuizClosed
	}

	var completed int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attempts WHERE quiz_id=$1 AND user_id=$2 AND status=$3`,
		quizID, userID, StatusSubmitted).Scan(&completed); err != nil {
		return Attempt{}, err
	}
	if completed > 0 {
		return Attempt{}, ErrAlreadyCompleted
	}

	var total, unkeyed int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM questions WHERE quiz_id=$1`, quizID).Scan(&total); err != nil {
		return Attempt{}, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM questions q WHERE q.quiz_id=$1
		   AND NOT EXISTS (SELECT 1 FROM options o WHERE o.question_id=q.id AND o.is_correct)`,
		quizID).Scan(&unkeyed); err != nil {
		return Attempt{}, err
	}
	if total == 0 || unkeyed > 0 {
		return Attempt{}, ErrQuizNotReady
	}

	// Abandoned in-progress attempts for this quiz are superseded.
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM attempts WHERE quiz_id=$1 AND user_id=$2 AND status=$3`,
		quizID, userID, StatusInProgress); err != nil {
		return Attempt{}, err
	}

	a := Attempt{
		ID:        newID(),
		QuizID:    quizID,
		UserID:    userID,
		Status:    StatusInProgress,
		StartedAt: now.Unix(),
		Answers:   map[string]string{},
	}
	if q.TimeLimitMin != nil {
		d := now.Add(time.Duration(*q.TimeLimitMin) * time.Minute).Unix()
		a.Deadline = &d
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempts (id,quiz_id,user_id,status,score,started_at,deadline)
		 VALUES ($1,$2,$3,$4,0,$5,$6)`,
		a.ID, a.QuizID, a.UserID, a.Status, a.StartedAt, a.Deadline)
	if err != nil {
		return Attempt{}, err
	}
	_ = s.events.Append(ctx, audit.TypeAttemptStarted, a.ID,
		map[string]string{"quiz_id": quizID, "user_id": userID})
	return a, nil
}

func (s *SQLStore) SaveAnswer(ctx context.Context, attemptID, questionID, optionID string) (Attempt, error) {
	a, err := s.attemptRow(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == StatusSubmitted {
		return Attempt{}, ErrAttemptSubmitted
	}
	if s.expired(a) {
		if _, err := s.finalize(ctx, a, *a.Deadline); err != nil {
			return Attempt{}, err
		}
		return Attempt{}, ErrAttemptSubmitted
	}

	// The question must belong to the attempt's quiz and the option to the question.
	var ok int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM options o JOIN questions q ON q.id=o.question_id
		  WHERE o.id=$1 AND q.id=$2 AND q.quiz_id=$3`,
		optionID, questionID, a.QuizID).Scan(&ok)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	if err != nil {
		return Attempt{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO answers (id,attempt_id,question_id,option_id) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (attempt_id,question_id) DO UPDATE SET option_id=EXCLUDED.option_id`,
		newID(), attemptID, questionID, optionID)
	if err != nil {
		return Attempt{}, err
	}
	return s.GetAttempt(ctx, attemptID)
}

func (s *SQLStore) SubmitAttempt(ctx context.Context, attemptID string) (Attempt, error) {
	a, err := s.attemptRow(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == StatusSubmitted {
		return s.GetAttempt(ctx, attemptID)
	}
	at := s.now().Unix()
	if s.expired(a) {
		at = *a.Deadline
	}
	return s.finalize(ctx, a, at)
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	a, err := s.attemptRow(ctx, id)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == StatusInProgress && s.expired(a) {
		if a, err = s.finalize(ctx, a, *a.Deadline); err != nil {
			return Attempt{}, err
		}
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, option_id FROM answers WHERE attempt_id=$1`, id)
	if err != nil {
		return Attempt{}, err
	}
	defer rows.Close()
	a.Answers = map[string]string{}
	for rows.Next() {
		var qid, oid string
		if err := rows.Scan(&qid, &oid); err != nil {
			return Attempt{}, err
		}
		a.Answers[qid] = oid
	}
	return a, rows.Err()
}

func (s *SQLStore) expired(a Attempt) bool {
	return a.Status == StatusInProgress && a.Deadline != nil && s.now().Unix() > *a.Deadline
}

// finalize scores the attempt from its recorded answers and marks it submitted.
func (s *SQLStore) finalize(ctx context.Context, a Attempt, submittedAt int64) (Attempt, error) {
	var correct, total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answers an JOIN options o ON o.id=an.option_id
		  WHERE an.attempt_id=$1 AND o.is_correct`, a.ID).Scan(&correct); err != nil {
		return Attempt{}, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM questions WHERE quiz_id=$1`, a.QuizID).Scan(&total); err != nil {
		return Attempt{}, err
	}
	score := 0.0
	if total > 0 {
		score = float64(correct) / float64(total) * 100
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET status=$1, score=$2, submitted_at=$3 WHERE id=$4`,
		StatusSubmitted, score, submittedAt, a.ID)
	if err != nil {
		return Attempt{}, err
	}
	_ = s.events.Append(ctx, audit.TypeAttemptSubmitted, a.ID,
		map[string]any{"quiz_id": a.QuizID, "user_id": a.UserID, "score": score})
	a.Status = StatusSubmitted
	a.Score = score
	a.SubmittedAt = &submittedAt
	return a, nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]AttemptRow, error) {
	sqlStr := `
		SELECT a.id, a.user_id, u.name, u.email, a.quiz_id, q.title, c.name, sub.name,
		       a.status, a.score, q.time_limit_min, q.pass_percentage, a.started_at, a.submitted_at
		  FROM attempts a
		  JOIN users u ON u.id=a.user_id
		  JOIN quizzes q ON q.id=a.quiz_id
		  JOIN chapters c ON c.id=q.chapter_id
		  JOIN subjects sub ON sub.id=c.subject_id
		 WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if opts.QuizID != "" {
		sqlStr += ` AND a.quiz_id=` + arg(opts.QuizID)
	}
	if opts.ChapterID != "" {
		sqlStr += ` AND c.id=` + arg(opts.ChapterID)
	}
	if opts.SubjectID != "" {
		sqlStr += ` AND sub.id=` + arg(opts.SubjectID)
	}
	if opts.UserID != "" {
		sqlStr += ` AND a.user_id=` + arg(opts.UserID)
	}
	if opts.Status != "" {
		sqlStr += ` AND a.status=` + arg(opts.Status)
	}
	if opts.From > 0 {
		sqlStr += ` AND a.started_at >= ` + arg(opts.From)
	}
	if opts.To > 0 {
		sqlStr += ` AND a.started_at < ` + arg(opts.To)
	}
	sqlStr += ` ORDER BY a.started_at DESC, a.id`
	if opts.Limit > 0 {
		sqlStr += ` LIMIT ` + arg(opts.Limit) + ` OFFSET ` + arg(opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []AttemptRow{}
	for rows.Next() {
		var r AttemptRow
		if err := rows.Scan(&r.AttemptID, &r.UserID, &r.UserName, &r.UserEmail,
			&r.QuizID, &r.QuizTitle, &r.ChapterName, &r.SubjectName,
			&r.Status, &r.Score, &r.TimeLimitMin, &r.PassPercentage,
			&r.StartedAt, &r.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- Maintenance and reporting ----

// CleanupAttempts finalizes in-progress attempts past their deadline and
// deletes untimed in-progress attempts older than staleAfter.
func (s *SQLStore) CleanupAttempts(ctx context.Context, staleAfter time.Duration) (finalized, deleted int, err error) {
	now := s.now().Unix()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, quiz_id, user_id, deadline FROM attempts
		  WHERE status=$1 AND deadline IS NOT NULL AND deadline < $2`,
		StatusInProgress, now)
	if err != nil {
		return 0, 0, err
	}
	var expired []Attempt
	for rows.Next() {
		var a Attempt
		a.Status = StatusInProgress
		if err := rows.Scan(&a.ID, &a.QuizID, &a.UserID, &a.Deadline); err != nil {
			rows.Close()
			return 0, 0, err
		}
		expired = append(expired, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}
	for _, a := range expired {
		if _, err := s.finalize(ctx, a, *a.Deadline); err != nil {
			return finalized, deleted, err
		}
		finalized++
	}

	cutoff := s.now().Add(-staleAfter).Unix()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM attempts WHERE status=$1 AND deadline IS NULL AND started_at < $2`,
		StatusInProgress, cutoff)
	if err != nil {
		return finalized, 0, err
	}
	if n, err := res.RowsAffected(); err == nil {
		deleted = int(n)
	}
	return finalized, deleted, nil
}

func (s *SQLStore) QuizStats(ctx context.Context, quizID string) (Stats, error) {
	if err := s.exists(ctx, "quizzes", quizID); err != nil {
		return Stats{}, err
	}
	st := Stats{QuizID: quizID, UpdatedAt: s.now().Unix()}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(a.score),0),
		        COALESCE(AVG(CASE WHEN a.score >= q.pass_percentage THEN 100.0 ELSE 0.0 END),0)
		   FROM attempts a JOIN quizzes q ON q.id=a.quiz_id
		  WHERE a.quiz_id=$1 AND a.status=$2`,
		quizID, StatusSubmitted).Scan(&st.TotalAttempts, &st.AvgScore, &st.PassRate)
	return st, err
}

func (s *SQLStore) UpcomingScheduled(ctx context.Context, from, until time.Time) ([]QuizSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.chapter_id, c.name, c.subject_id, sub.name,
		       q.title, q.time_limit_min, q.pass_percentage, q.scheduled, q.starts_at, q.ends_at,
		       (SELECT COUNT(*) FROM questions qu WHERE qu.quiz_id=q.id)
		  FROM quizzes q
		  JOIN chapters c ON c.id=q.chapter_id
		  JOIN subjects sub ON sub.id=c.subject_id
		 WHERE q.scheduled AND q.starts_at IS NOT NULL AND q.starts_at >= $1 AND q.starts_at <= $2
		 ORDER BY q.starts_at`,
		from.Unix(), until.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []QuizSummary{}
	for rows.Next() {
		var qs QuizSummary
		if err := rows.Scan(&qs.ID, &qs.ChapterID, &qs.ChapterName, &qs.SubjectID, &qs.SubjectName,
			&qs.Title, &qs.TimeLimitMin, &qs.PassPercentage, &qs.Scheduled, &qs.StartsAt, &qs.EndsAt,
			&qs.QuestionCount); err != nil {
			return nil, err
		}
		out = append(out, qs)
	}
	return out, rows.Err()
}

func (s *SQLStore) Search(ctx context.Context, q string, includeUsers bool) (SearchResult, error) {
	res := SearchResult{Quizzes: []QuizSummary{}, Subjects: []Subject{}}
	q = strings.TrimSpace(q)
	if q == "" {
		return res, nil
	}
	var err error
	if res.Quizzes, err = s.ListQuizzes(ctx, ListOpts{Q: q}); err != nil {
		return res, err
	}

	pat := "%" + strings.ToLower(q) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,name,description,created_at FROM subjects
		  WHERE lower(name) LIKE $1 OR lower(description) LIKE $1 ORDER BY name`, pat)
	if err != nil {
		return res, err
	}
	for rows.Next() {
		var sub Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Description, &sub.CreatedAt); err != nil {
			rows.Close()
			return res, err
		}
		res.Subjects = append(res.Subjects, sub)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return res, err
	}

	if includeUsers {
		urows, err := s.db.QueryContext(ctx,
			`SELECT id,name,email FROM users
			  WHERE lower(name) LIKE $1 OR lower(email) LIKE $1 ORDER BY name`, pat)
		if err != nil {
			return res, err
		}
		defer urows.Close()
		for urows.Next() {
			var u UserRef
			if err := urows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
				return res, err
			}
			res.Users = append(res.Users, u)
		}
		if err := urows.Err(); err != nil {
			return res, err
		}
	}
	return res, nil
}

// ---- helpers ----

func (s *SQLStore) quizRow(ctx context.Context, id string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,chapter_id,title,time_limit_min,pass_percentage,scheduled,starts_at,ends_at
		 FROM quizzes WHERE id=$1`, id)
	var q Quiz
	if err := row.Scan(&q.ID, &q.ChapterID, &q.Title, &q.TimeLimitMin,
		&q.PassPercentage, &q.Scheduled, &q.StartsAt, &q.EndsAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrNotFound
		}
		return Quiz{}, err
	}
	return q, nil
}

func (s *SQLStore) attemptRow(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,quiz_id,user_id,status,score,started_at,deadline,submitted_at
		 FROM attempts WHERE id=$1`, id)
	var a Attempt
	if err := row.Scan(&a.ID, &a.QuizID, &a.UserID, &a.Status, &a.Score,
		&a.StartedAt, &a.Deadline, &a.SubmittedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrNotFound
		}
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) exists(ctx context.Context, table, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT 1 FROM %s WHERE id=$1`, table), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func errIfNoRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
