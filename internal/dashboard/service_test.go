package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepforge/exam-portal/internal/exam"
)

// listExamStore serves pre-built slices ordered newest first, the way the
// repository returns them.
type listExamStore struct {
	exams []*exam.Exam
	limit int
}

func (s *listExamStore) InsertExam(context.Context, *exam.Exam) error { return nil }

func (s *listExamStore) GetExam(context.Context, uuid.UUID, uuid.UUID) (*exam.Exam, error) {
	return nil, exam.ErrExamNotFound
}

func (s *listExamStore) MarkStarted(context.Context, uuid.UUID, time.Time) error { return nil }

func (s *listExamStore) MarkCompleted(context.Context, uuid.UUID, time.Time, map[string]int) error {
	return nil
}

func (s *listExamStore) ListExams(_ context.Context, _ uuid.UUID, limit int) ([]*exam.Exam, error) {
	s.limit = limit
	if limit < len(s.exams) {
		return s.exams[:limit], nil
	}
	return s.exams, nil
}

type listResultStore struct {
	results []*exam.Result
	limit   int
}

func (s *listResultStore) InsertResult(context.Context, *exam.Result) error { return nil }

func (s *listResultStore) GetResult(context.Context, uuid.UUID, uuid.UUID) (*exam.Result, error) {
	return nil, exam.ErrResultNotFound
}

func (s *listResultStore) ListResults(_ context.Context, _ uuid.UUID, limit int) ([]*exam.Result, error) {
	s.limit = limit
	if limit < len(s.results) {
		return s.results[:limit], nil
	}
	return s.results, nil
}

func TestSnapshotAggregatesFullHistory(t *testing.T) {
	userID := uuid.New()
	now := time.Now().UTC()

	exams := &listExamStore{}
	results := &listResultStore{}
	// Ten completed exams and results, newest first. The best score sits
	// on the oldest record, outside the recent page.
	for i := 0; i < 10; i++ {
		examID := uuid.New()
		pct := 50.0
		if i == 9 {
			pct = 95.0
		}
		exams.exams = append(exams.exams, &exam.Exam{
			ID:        examID,
			UserID:    userID,
			ExamType:  "JEE Main",
			Status:    exam.StatusCompleted,
			CreatedAt: now.Add(-time.Duration(i) * time.Hour),
		})
		results.results = append(results.results, &exam.Result{
			ExamID:         examID,
			UserID:         userID,
			Score:          int(pct),
			TotalQuestions: 100,
			Percentage:     pct,
			CreatedAt:      now.Add(-time.Duration(i) * time.Hour),
		})
	}

	svc := NewService(exams, results, nil, zerolog.Nop(), ServiceOptions{})
	snap, err := svc.Snapshot(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, 10, snap.TotalExams)
	assert.Equal(t, 10, snap.CompletedExams)
	assert.InDelta(t, 54.5, snap.AveragePercentage, 1e-9)
	assert.Equal(t, 95.0, snap.BestPercentage)

	// The recent slices stay at the display limit, newest first.
	require.Len(t, snap.RecentExams, 5)
	require.Len(t, snap.RecentResults, 5)
	assert.Equal(t, exams.exams[0].ID, snap.RecentExams[0].ID)
	assert.Equal(t, 50.0, snap.RecentResults[0].Percentage)

	// Statistics are fetched over the history window, not the recent page.
	assert.Equal(t, 100, exams.limit)
	assert.Equal(t, 100, results.limit)
}

func TestSnapshotCountsIncompleteExams(t *testing.T) {
	userID := uuid.New()
	now := time.Now().UTC()

	exams := &listExamStore{}
	for i, status := range []string{exam.StatusCreated, exam.StatusOngoing, exam.StatusCompleted} {
		exams.exams = append(exams.exams, &exam.Exam{
			ID:        uuid.New(),
			UserID:    userID,
			ExamType:  "NEET",
			Status:    status,
			CreatedAt: now.Add(-time.Duration(i) * time.Minute),
		})
	}

	svc := NewService(exams, &listResultStore{}, nil, zerolog.Nop(), ServiceOptions{})
	snap, err := svc.Snapshot(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.TotalExams)
	assert.Equal(t, 1, snap.CompletedExams)
	assert.Zero(t, snap.AveragePercentage)
	assert.Zero(t, snap.BestPercentage)
	assert.Empty(t, snap.RecentResults)
}

func TestSnapshotEmptyHistory(t *testing.T) {
	svc := NewService(&listExamStore{}, &listResultStore{}, nil, zerolog.Nop(), ServiceOptions{})
	snap, err := svc.Snapshot(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Zero(t, snap.TotalExams)
	assert.Zero(t, snap.CompletedExams)
	assert.Zero(t, snap.AveragePercentage)
	assert.Empty(t, snap.RecentExams)
	assert.Empty(t, snap.RecentResults)
	assert.False(t, snap.GeneratedAt.IsZero())
}
