package quiz

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrQuizClosed        = errors.New("quiz is outside its scheduled window")
	ErrQuizNotReady      = errors.New("quiz has no gradable questions")
	ErrAlreadyCompleted  = errors.New("quiz already completed")
	ErrAttemptSubmitted  = errors.New("attempt already submitted")
	ErrLastCorrectOption = errors.New("question needs at least one correct option")
)

type ListOpts struct {
	SubjectID     string
	ChapterID     string
	Q             string
	AvailableOnly bool // students: only quizzes open right now
	Limit         int
	Offset        int
}

type AttemptListOpts struct {
	QuizID    string
	ChapterID string
	SubjectID string
	UserID    string
	Status    string // in_progress|submitted
	From      int64  // unix bounds on started_at; zero means unbounded
	To        int64
	Limit     int
	Offset    int
}

type Store interface {
	// Subjects
	CreateSubject(ctx context.Context, s Subject) (Subject, error)
	UpdateSubject(ctx context.Context, s Subject) error
	GetSubject(ctx context.Context, id string) (Subject, error)
	ListSubjects(ctx context.Context) ([]Subject, error)
	DeleteSubject(ctx context.Context, id string) error

	// Chapters
	CreateChapter(ctx context.Context, c Chapter) (Chapter, error)
	UpdateChapter(ctx context.Context, c Chapter) error
	GetChapter(ctx context.Context, id string) (Chapter, error)
	ListChapters(ctx context.Context, subjectID string) ([]Chapter, error)
	DeleteChapter(ctx context.Context, id string) error

	// Quizzes
	CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
	UpdateQuiz(ctx context.Context, q Quiz) error
	GetQuiz(ctx context.Context, id string, includeKey bool) (Quiz, error)
	ListQuizzes(ctx context.Context, opts ListOpts) ([]QuizSummary, error)
	DeleteQuiz(ctx context.Context, id string) error

	// Questions and options
	CreateQuestion(ctx context.Context, q Question) (Question, error)
	UpdateQuestion(ctx context.Context, q Question) error
	DeleteQuestion(ctx context.Context, id string) error
	CreateOption(ctx context.Context, o Option) (Option, error)
	UpdateOption(ctx context.Context, o Option) error
	DeleteOption(ctx context.Context, id string) error

	// Quiz-taking
	StartAttempt(ctx context.Context, quizID, userID string) (Attempt, error)
	SaveAnswer(ctx context.Context, attemptID, questionID, optionID string) (Attempt, error)
	SubmitAttempt(ctx context.Context, attemptID string) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]AttemptRow, error)

	// Maintenance and reporting
	CleanupAttempts(ctx context.Context, staleAfter time.Duration) (finalized, deleted int, err error)
	QuizStats(ctx context.Context, quizID string) (Stats, error)
	UpcomingScheduled(ctx context.Context, from, until time.Time) ([]QuizSummary, error)
	Search(ctx context.Context, q string, includeUsers bool) (SearchResult, error)
}
