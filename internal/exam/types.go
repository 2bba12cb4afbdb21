package exam

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Exam lifecycle states. Transitions are strictly linear:
// created -> ongoing -> completed.
const (
	StatusCreated   = "created"
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
)

// Difficulty levels accepted in exam configuration.
const (
	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"
	DifficultyMixed  = "Mixed"
)

var (
	ErrExamNotFound   = errors.New("exam not found")
	ErrResultNotFound = errors.New("result not found")
	ErrInvalidState   = errors.New("invalid exam state")
)

// ConfigError marks a client-side exam configuration problem.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid exam config: " + e.Reason
}

// Config describes one exam to be generated and administered.
type Config struct {
	ExamType      string   `json:"exam_type"`
	Subjects      []string `json:"subjects"`
	QuestionCount int      `json:"question_count"`
	Duration      int      `json:"duration"` // minutes
	Difficulty    string   `json:"difficulty"`
}

// Validate enforces the configuration invariants. Configurations requesting
// fewer questions than subjects are rejected outright: the planner's
// minimum-of-one clamp cannot absorb that deficit, so the total would come
// out wrong (see planner tests).
func (c Config) Validate() error {
	if c.ExamType == "" {
		return &ConfigError{Reason: "exam_type is required"}
	}
	if len(c.Subjects) == 0 {
		return &ConfigError{Reason: "at least one subject is required"}
	}
	if c.QuestionCount <= 0 {
		return &ConfigError{Reason: "question_count must be positive"}
	}
	if c.QuestionCount < len(c.Subjects) {
		return &ConfigError{Reason: fmt.Sprintf("question_count %d is less than subject count %d", c.QuestionCount, len(c.Subjects))}
	}
	if c.Duration <= 0 {
		return &ConfigError{Reason: "duration must be positive"}
	}
	return nil
}

// Question is a single multiple-choice item. Options always has exactly
// four entries and CorrectIndex indexes into it.
type Question struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectIndex  int      `json:"correct_index"`
	CorrectAnswer string   `json:"correct_answer"`
	Solution      string   `json:"solution"`
	Difficulty    string   `json:"difficulty"`
	Subject       string   `json:"subject"`
	Topic         string   `json:"topic"`
	ExamType      string   `json:"exam_type"`
}

// Exam is the persisted exam instance. Question order is fixed at creation
// and answers are keyed by question position ("0", "1", ...).
type Exam struct {
	ID               uuid.UUID      `json:"id"`
	UserID           uuid.UUID      `json:"user_id"`
	ExamType         string         `json:"exam_type"`
	Configuration    Config         `json:"configuration"`
	Questions        []Question     `json:"questions"`
	Duration         int            `json:"duration"`
	Status           string         `json:"status"`
	StartTime        *time.Time     `json:"start_time,omitempty"`
	EndTime          *time.Time     `json:"end_time,omitempty"`
	Answers          map[string]int `json:"answers"`
	PlaceholderCount int            `json:"placeholder_count"`
	CreatedAt        time.Time      `json:"created_at"`
}

// SubjectScore tallies correct answers within one subject.
type SubjectScore struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// AnswerDetail is the per-question record in a result's detailed analysis.
// UserAnswer is nil when the question was left unanswered.
type AnswerDetail struct {
	QuestionID    string   `json:"question_id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	UserAnswer    *int     `json:"user_answer"`
	IsCorrect     bool     `json:"is_correct"`
	Solution      string   `json:"solution"`
	Subject       string   `json:"subject"`
	Topic         string   `json:"topic"`
}

// Result is the immutable scoring record for a completed exam.
type Result struct {
	ExamID           uuid.UUID               `json:"exam_id"`
	UserID           uuid.UUID               `json:"user_id"`
	Score            int                     `json:"score"`
	TotalQuestions   int                     `json:"total_questions"`
	CorrectAnswers   int                     `json:"correct_answers"`
	Percentage       float64                 `json:"percentage"`
	TimeTakenMinutes int                     `json:"time_taken"`
	SubjectScores    map[string]SubjectScore `json:"subject_wise_score"`
	DetailedAnalysis []AnswerDetail          `json:"detailed_analysis"`
	CreatedAt        time.Time               `json:"created_at"`
}
