package exam

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type memoryExamStore struct {
	exams map[uuid.UUID]*Exam
}

func newMemoryExamStore() *memoryExamStore {
	return &memoryExamStore{exams: map[uuid.UUID]*Exam{}}
}

func (s *memoryExamStore) InsertExam(_ context.Context, e *Exam) error {
	copied := *e
	s.exams[e.ID] = &copied
	return nil
}

func (s *memoryExamStore) GetExam(_ context.Context, examID, userID uuid.UUID) (*Exam, error) {
	e, ok := s.exams[examID]
	if !ok || e.UserID != userID {
		return nil, ErrExamNotFound
	}
	copied := *e
	return &copied, nil
}

func (s *memoryExamStore) MarkStarted(_ context.Context, examID uuid.UUID, at time.Time) error {
	e, ok := s.exams[examID]
	if !ok {
		return ErrExamNotFound
	}
	e.Status = StatusOngoing
	e.StartTime = &at
	return nil
}

func (s *memoryExamStore) MarkCompleted(_ context.Context, examID uuid.UUID, at time.Time, answers map[string]int) error {
	e, ok := s.exams[examID]
	if !ok {
		return ErrExamNotFound
	}
	e.Status = StatusCompleted
	e.EndTime = &at
	e.Answers = answers
	return nil
}

func (s *memoryExamStore) ListExams(_ context.Context, userID uuid.UUID, limit int) ([]*Exam, error) {
	var out []*Exam
	for _, e := range s.exams {
		if e.UserID == userID && len(out) < limit {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

type memoryResultStore struct {
	results map[uuid.UUID]*Result
}

func newMemoryResultStore() *memoryResultStore {
	return &memoryResultStore{results: map[uuid.UUID]*Result{}}
}

func (s *memoryResultStore) InsertResult(_ context.Context, r *Result) error {
	copied := *r
	s.results[r.ExamID] = &copied
	return nil
}

func (s *memoryResultStore) GetResult(_ context.Context, examID, userID uuid.UUID) (*Result, error) {
	r, ok := s.results[examID]
	if !ok || r.UserID != userID {
		return nil, ErrResultNotFound
	}
	copied := *r
	return &copied, nil
}

func (s *memoryResultStore) ListResults(_ context.Context, userID uuid.UUID, limit int) ([]*Result, error) {
	var out []*Result
	for _, r := range s.results {
		if r.UserID == userID && len(out) < limit {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func newTestService(t *testing.T, model ModelClient) (*Service, *memoryExamStore, *memoryResultStore) {
	t.Helper()
	exams := newMemoryExamStore()
	results := newMemoryResultStore()
	gen := NewGenerator(model, testOptions(), nil, zerolog.Nop())
	svc := NewService(exams, results, gen, zerolog.Nop())
	return svc, exams, results
}

// seedExam installs an exam in a known state, bypassing generation.
func seedExam(store *memoryExamStore, userID uuid.UUID, status string, questions []Question) *Exam {
	e := &Exam{
		ID:        uuid.New(),
		UserID:    userID,
		ExamType:  "JEE Main",
		Questions: questions,
		Duration:  60,
		Status:    status,
		Answers:   map[string]int{},
		CreatedAt: time.Now().UTC(),
	}
	store.exams[e.ID] = e
	return e
}

func twoSubjectQuestions() []Question {
	return []Question{
		{ID: "q0", Question: "P1", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 0, Subject: "Physics"},
		{ID: "q1", Question: "P2", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1, Subject: "Physics"},
		{ID: "q2", Question: "C1", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 2, Subject: "Chemistry"},
		{ID: "q3", Question: "C2", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 3, Subject: "Chemistry"},
	}
}

func TestCreateExamRejectsInvalidConfig(t *testing.T) {
	svc, _, _ := newTestService(t, &stubModel{generate: func(int, string) (string, error) {
		return "", errors.New("should not be called")
	}})

	_, err := svc.CreateExam(context.Background(), uuid.New(), Config{})

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestCreateExamPersistsCreatedExam(t *testing.T) {
	model := &stubModel{generate: func(_ int, _ string) (string, error) {
		return "", errors.New("model down")
	}}
	svc, store, _ := newTestService(t, model)
	userID := uuid.New()

	cfg := Config{
		ExamType:      "JEE Main",
		Subjects:      []string{"Physics", "Chemistry", "Mathematics"},
		QuestionCount: 6,
		Duration:      30,
		Difficulty:    DifficultyEasy,
	}
	exam, err := svc.CreateExam(context.Background(), userID, cfg)

	assert.NoError(t, err)
	assert.Equal(t, StatusCreated, exam.Status)
	assert.Len(t, exam.Questions, 6)
	assert.Equal(t, 6, exam.PlaceholderCount)

	stored, err := store.GetExam(context.Background(), exam.ID, userID)
	assert.NoError(t, err)
	assert.Equal(t, exam.ID, stored.ID)
}

func TestStartExamOnlyFromCreated(t *testing.T) {
	svc, store, _ := newTestService(t, &stubModel{generate: func(int, string) (string, error) {
		return "", errors.New("unused")
	}})
	userID := uuid.New()

	created := seedExam(store, userID, StatusCreated, twoSubjectQuestions())
	completed := seedExam(store, userID, StatusCompleted, twoSubjectQuestions())
	ongoing := seedExam(store, userID, StatusOngoing, twoSubjectQuestions())

	assert.NoError(t, svc.StartExam(context.Background(), userID, created.ID))
	assert.ErrorIs(t, svc.StartExam(context.Background(), userID, completed.ID), ErrInvalidState)
	assert.ErrorIs(t, svc.StartExam(context.Background(), userID, ongoing.ID), ErrInvalidState)

	// Starting twice is rejected.
	assert.ErrorIs(t, svc.StartExam(context.Background(), userID, created.ID), ErrInvalidState)
}

func TestSubmitExamOnlyFromOngoing(t *testing.T) {
	svc, store, _ := newTestService(t, &stubModel{generate: func(int, string) (string, error) {
		return "", errors.New("unused")
	}})
	userID := uuid.New()

	created := seedExam(store, userID, StatusCreated, twoSubjectQuestions())
	completed := seedExam(store, userID, StatusCompleted, twoSubjectQuestions())

	_, err := svc.SubmitExam(context.Background(), userID, created.ID, map[string]int{})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.SubmitExam(context.Background(), userID, completed.ID, map[string]int{})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSubmitExamScoresAndStoresResult(t *testing.T) {
	svc, store, results := newTestService(t, &stubModel{generate: func(int, string) (string, error) {
		return "", errors.New("unused")
	}})
	userID := uuid.New()

	exam := seedExam(store, userID, StatusOngoing, twoSubjectQuestions())
	start := time.Now().UTC().Add(-25 * time.Minute)
	exam.StartTime = &start

	// Q0 right, Q1 wrong, Q2 right, Q3 unanswered.
	answers := map[string]int{"0": 0, "1": 3, "2": 2}
	result, err := svc.SubmitExam(context.Background(), userID, exam.ID, answers)

	assert.NoError(t, err)
	assert.Equal(t, 2, result.CorrectAnswers)
	assert.Equal(t, 4, result.TotalQuestions)
	assert.Equal(t, 50.0, result.Percentage)
	assert.Equal(t, 25, result.TimeTakenMinutes)

	assert.Equal(t, SubjectScore{Correct: 1, Total: 2}, result.SubjectScores["Physics"])
	assert.Equal(t, SubjectScore{Correct: 1, Total: 2}, result.SubjectScores["Chemistry"])

	assert.Len(t, result.DetailedAnalysis, 4)
	unanswered := result.DetailedAnalysis[3]
	assert.Nil(t, unanswered.UserAnswer)
	assert.False(t, unanswered.IsCorrect)
	wrong := result.DetailedAnalysis[1]
	assert.NotNil(t, wrong.UserAnswer)
	assert.Equal(t, 3, *wrong.UserAnswer)
	assert.False(t, wrong.IsCorrect)

	stored, err := results.GetResult(context.Background(), exam.ID, userID)
	assert.NoError(t, err)
	assert.Equal(t, result.Percentage, stored.Percentage)

	// The exam itself is now completed with the answers attached.
	updated, err := store.GetExam(context.Background(), exam.ID, userID)
	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)
	assert.Equal(t, answers, updated.Answers)
}

func TestScoreExamIsDeterministic(t *testing.T) {
	exam := &Exam{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Questions: twoSubjectQuestions(),
	}
	start := time.Now().UTC().Add(-10 * time.Minute)
	exam.StartTime = &start
	answers := map[string]int{"0": 0, "2": 1}
	at := time.Now().UTC()

	first := scoreExam(exam, answers, at)
	second := scoreExam(exam, answers, at)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, first.CorrectAnswers)
	assert.Equal(t, 25.0, first.Percentage)
}

func TestGetExamAndResultEnforceOwnership(t *testing.T) {
	svc, store, results := newTestService(t, &stubModel{generate: func(int, string) (string, error) {
		return "", errors.New("unused")
	}})
	owner := uuid.New()
	stranger := uuid.New()

	exam := seedExam(store, owner, StatusCompleted, twoSubjectQuestions())
	results.results[exam.ID] = &Result{ExamID: exam.ID, UserID: owner}

	_, err := svc.GetExam(context.Background(), stranger, exam.ID)
	assert.ErrorIs(t, err, ErrExamNotFound)

	_, err = svc.GetResult(context.Background(), stranger, exam.ID)
	assert.ErrorIs(t, err, ErrResultNotFound)

	_, err = svc.GetExam(context.Background(), owner, exam.ID)
	assert.NoError(t, err)
}
