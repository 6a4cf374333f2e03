package quiz

import "time"

const (
	StatusInProgress = "in_progress"
	StatusSubmitted  = "submitted"
)

type Subject struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"created_at,omitempty"`
}

type Chapter struct {
	ID          string `json:"id"`
	SubjectID   string `json:"subject_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"created_at,omitempty"`
}

type Option struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id,omitempty"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct,omitempty"` // stripped when serving students
}

type Question struct {
	ID       string   `json:"id"`
	QuizID   string   `json:"quiz_id,omitempty"`
	Text     string   `json:"text"`
	Position int      `json:"position"`
	Options  []Option `json:"options,omitempty"`
}

type Quiz struct {
	ID             string  `json:"id"`
	ChapterID      string  `json:"chapter_id"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	TimeLimitMin   *int    `json:"time_limit_min,omitempty"` // nil: no limit
	PassPercentage float64 `json:"pass_percentage"`
	Scheduled      bool    `json:"scheduled"`
	StartsAt       *int64  `json:"starts_at,omitempty"`
	EndsAt         *int64  `json:"ends_at,omitempty"`
	CreatedAt      int64   `json:"created_at,omitempty"`

	Questions []Question `json:"questions,omitempty"`
}

// Available reports whether the quiz can be taken at t. Unscheduled
// quizzes are always open.
func (q Quiz) Available(t time.Time) bool {
	if !q.Scheduled {
		return true
	}
	now := t.Unix()
	if q.StartsAt != nil && now < *q.StartsAt {
		return false
	}
	if q.EndsAt != nil && now > *q.EndsAt {
		return false
	}
	return true
}

type QuizSummary struct {
	ID             string  `json:"id"`
	ChapterID      string  `json:"chapter_id"`
	ChapterName    string  `json:"chapter_name"`
	SubjectID      string  `json:"subject_id"`
	SubjectName    string  `json:"subject_name"`
	Title          string  `json:"title"`
	TimeLimitMin   *int    `json:"time_limit_min,omitempty"`
	PassPercentage float64 `json:"pass_percentage"`
	Scheduled      bool    `json:"scheduled"`
	StartsAt       *int64  `json:"starts_at,omitempty"`
	EndsAt         *int64  `json:"ends_at,omitempty"`
	QuestionCount  int     `json:"question_count"`
}

type Attempt struct {
	ID          string  `json:"id"`
	QuizID      string  `json:"quiz_id"`
	UserID      string  `json:"user_id"`
	Status      string  `json:"status"` // in_progress|submitted
	Score       float64 `json:"score"`
	StartedAt   int64   `json:"started_at"`
	Deadline    *int64  `json:"deadline,omitempty"`
	SubmittedAt *int64  `json:"submitted_at,omitempty"`

	Answers map[string]string `json:"answers,omitempty"` // questionID -> optionID
}

// AttemptRow is an attempt joined with its quiz, chapter, subject and user,
// as consumed by listings, reports and CSV exports.
type AttemptRow struct {
	AttemptID      string  `json:"attempt_id"`
	UserID         string  `json:"user_id"`
	UserName       string  `json:"user_name"`
	UserEmail      string  `json:"user_email"`
	QuizID         string  `json:"quiz_id"`
	QuizTitle      string  `json:"quiz_title"`
	ChapterName    string  `json:"chapter_name"`
	SubjectName    string  `json:"subject_name"`
	Status         string  `json:"status"`
	Score          float64 `json:"score"`
	TimeLimitMin   *int    `json:"time_limit_min,omitempty"`
	PassPercentage float64 `json:"pass_percentage"`
	StartedAt      int64   `json:"started_at"`
	SubmittedAt    *int64  `json:"submitted_at,omitempty"`
}

// Passed reports pass/fail for a submitted attempt.
func (r AttemptRow) Passed() bool {
	return r.Status == StatusSubmitted && r.Score >= r.PassPercentage
}

// ResultStatus is the PASS/FAIL/INCOMPLETE label used in reports.
func (r AttemptRow) ResultStatus() string {
	if r.Status != StatusSubmitted {
		return "INCOMPLETE"
	}
	if r.Passed() {
		return "PASS"
	}
	return "FAIL"
}

type Stats struct {
	QuizID        string  `json:"quiz_id"`
	TotalAttempts int     `json:"total_attempts"`
	AvgScore      float64 `json:"avg_score"`
	PassRate      float64 `json:"pass_rate"`
	UpdatedAt     int64   `json:"updated_at"`
}

type SearchResult struct {
	Quizzes  []QuizSummary `json:"quizzes"`
	Subjects []Subject     `json:"subjects"`
	Users    []UserRef     `json:"users,omitempty"`
}

type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
