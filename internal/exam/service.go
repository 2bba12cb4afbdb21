package exam

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ExamStore persists exam documents. Updates are last-write-wins; the
// service performs state checks before mutating.
type ExamStore interface {
	InsertExam(ctx context.Context, e *Exam) error
	GetExam(ctx context.Context, examID, userID uuid.UUID) (*Exam, error)
	MarkStarted(ctx context.Context, examID uuid.UUID, at time.Time) error
	MarkCompleted(ctx context.Context, examID uuid.UUID, at time.Time, answers map[string]int) error
	ListExams(ctx context.Context, userID uuid.UUID, limit int) ([]*Exam, error)
}

// ResultStore persists immutable scoring records keyed by exam id.
type ResultStore interface {
	InsertResult(ctx context.Context, r *Result) error
	GetResult(ctx context.Context, examID, userID uuid.UUID) (*Result, error)
	ListResults(ctx context.Context, userID uuid.UUID, limit int) ([]*Result, error)
}

// Service owns the exam lifecycle: creation (via the question generator),
// the created -> ongoing -> completed state machine, and scoring.
type Service struct {
	exams     ExamStore
	results   ResultStore
	generator *Generator
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates the exam lifecycle service.
func NewService(exams ExamStore, results ResultStore, generator *Generator, logger zerolog.Logger) *Service {
	return &Service{
		exams:     exams,
		results:   results,
		generator: generator,
		logger:    logger.With().Str("component", "exam_service").Logger(),
		now:       time.Now,
	}
}

// CreateExam validates the configuration, generates the question list, and
// persists a new exam in the created state. Generation quality degradation
// never fails creation; the placeholder count is logged and stored.
func (s *Service) CreateExam(ctx context.Context, userID uuid.UUID, cfg Config) (*Exam, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	examID := uuid.New()
	result, err := s.generator.GenerateExamQuestions(ctx, examID, cfg)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	exam := &Exam{
		ID:               examID,
		UserID:           userID,
		ExamType:         cfg.ExamType,
		Configuration:    cfg,
		Questions:        result.Questions,
		Duration:         cfg.Duration,
		Status:           StatusCreated,
		Answers:          map[string]int{},
		PlaceholderCount: result.PlaceholderCount,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.exams.InsertExam(ctx, exam); err != nil {
		return nil, fmt.Errorf("store exam: %w", err)
	}

	logEvent := s.logger.Info()
	if result.PlaceholderCount > 0 {
		logEvent = s.logger.Warn()
	}
	logEvent.
		Str("exam_id", examID.String()).
		Str("user_id", userID.String()).
		Int("questions", len(result.Questions)).
		Int("placeholders", result.PlaceholderCount).
		Msg("exam created")

	return exam, nil
}

// GetExam returns an exam owned by userID.
func (s *Service) GetExam(ctx context.Context, userID, examID uuid.UUID) (*Exam, error) {
	return s.exams.GetExam(ctx, examID, userID)
}

// StartExam transitions created -> ongoing and records the start time.
func (s *Service) StartExam(ctx context.Context, userID, examID uuid.UUID) error {
	exam, err := s.exams.GetExam(ctx, examID, userID)
	if err != nil {
		return err
	}
	if exam.Status != StatusCreated {
		return fmt.Errorf("%w: cannot start exam in status %q", ErrInvalidState, exam.Status)
	}

	if err := s.exams.MarkStarted(ctx, examID, s.now().UTC()); err != nil {
		return fmt.Errorf("mark started: %w", err)
	}
	s.logger.Info().Str("exam_id", examID.String()).Msg("exam started")
	return nil
}

// SubmitExam transitions ongoing -> completed, scores the answer map, and
// persists the immutable result.
func (s *Service) SubmitExam(ctx context.Context, userID, examID uuid.UUID, answers map[string]int) (*Result, error) {
	exam, err := s.exams.GetExam(ctx, examID, userID)
	if err != nil {
		return nil, err
	}
	if exam.Status != StatusOngoing {
		return nil, fmt.Errorf("%w: cannot submit exam in status %q", ErrInvalidState, exam.Status)
	}

	submittedAt := s.now().UTC()
	result := scoreExam(exam, answers, submittedAt)

	if err := s.exams.MarkCompleted(ctx, examID, submittedAt, answers); err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}
	if err := s.results.InsertResult(ctx, result); err != nil {
		return nil, fmt.Errorf("store result: %w", err)
	}

	s.logger.Info().
		Str("exam_id", examID.String()).
		Int("correct", result.CorrectAnswers).
		Float64("percentage", result.Percentage).
		Msg("exam submitted")

	return result, nil
}

// GetResult returns the result for an exam owned by userID.
func (s *Service) GetResult(ctx context.Context, userID, examID uuid.UUID) (*Result, error) {
	return s.results.GetResult(ctx, examID, userID)
}

// scoreExam computes the full result for a fixed answer map. Pure given its
// inputs, which makes scoring idempotent: the same answers always produce
// the same tallies. Answers are keyed by question position; an absent key
// counts as incorrect, never as an error.
func scoreExam(exam *Exam, answers map[string]int, submittedAt time.Time) *Result {
	correct := 0
	subjectScores := make(map[string]SubjectScore)
	details := make([]AnswerDetail, 0, len(exam.Questions))

	for i, q := range exam.Questions {
		key := strconv.Itoa(i)
		var userAnswer *int
		if a, ok := answers[key]; ok {
			v := a
			userAnswer = &v
		}
		isCorrect := userAnswer != nil && *userAnswer == q.CorrectIndex
		if isCorrect {
			correct++
		}

		score := subjectScores[q.Subject]
		score.Total++
		if isCorrect {
			score.Correct++
		}
		subjectScores[q.Subject] = score

		details = append(details, AnswerDetail{
			QuestionID:    key,
			Question:      q.Question,
			Options:       q.Options,
			CorrectAnswer: q.CorrectIndex,
			UserAnswer:    userAnswer,
			IsCorrect:     isCorrect,
			Solution:      q.Solution,
			Subject:       q.Subject,
			Topic:         q.Topic,
		})
	}

	total := len(exam.Questions)
	percentage := 0.0
	if total > 0 {
		percentage = float64(correct) / float64(total) * 100
	}

	timeTaken := 0
	if exam.StartTime != nil {
		timeTaken = int(submittedAt.Sub(*exam.StartTime).Minutes())
	}

	return &Result{
		ExamID:           exam.ID,
		UserID:           exam.UserID,
		Score:            correct,
		TotalQuestions:   total,
		CorrectAnswers:   correct,
		Percentage:       percentage,
		TimeTakenMinutes: timeTaken,
		SubjectScores:    subjectScores,
		DetailedAnalysis: details,
		CreatedAt:        submittedAt,
	}
}
