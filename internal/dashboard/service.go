package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepforge/exam-portal/internal/exam"
)

// ExamSummary is the trimmed exam record shown on the dashboard.
type ExamSummary struct {
	ID            uuid.UUID `json:"id"`
	ExamType      string    `json:"exam_type"`
	Subjects      []string  `json:"subjects"`
	QuestionCount int       `json:"question_count"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// ResultSummary is the trimmed result record shown on the dashboard.
type ResultSummary struct {
	ExamID           uuid.UUID `json:"exam_id"`
	Score            int       `json:"score"`
	TotalQuestions   int       `json:"total_questions"`
	Percentage       float64   `json:"percentage"`
	TimeTakenMinutes int       `json:"time_taken"`
	CreatedAt        time.Time `json:"created_at"`
}

// Snapshot aggregates one user's activity for the dashboard view.
type Snapshot struct {
	TotalExams        int             `json:"total_exams"`
	CompletedExams    int             `json:"completed_exams"`
	AveragePercentage float64         `json:"average_percentage"`
	BestPercentage    float64         `json:"best_percentage"`
	RecentExams       []ExamSummary   `json:"recent_exams"`
	RecentResults     []ResultSummary `json:"recent_results"`
	GeneratedAt       time.Time       `json:"generated_at"`
}

// ServiceOptions configures dashboard caching behavior.
type ServiceOptions struct {
	CacheTTL       time.Duration
	RecentLimit    int
	HistoryLimit   int
	RedisKeyPrefix string
}

// Service builds per-user dashboard snapshots with a short Redis cache in
// front of the stores. A stale-by-seconds snapshot is acceptable here.
type Service struct {
	exams        exam.ExamStore
	results      exam.ResultStore
	redis        *redis.Client
	logger       zerolog.Logger
	cacheTTL     time.Duration
	recentLimit  int
	historyLimit int
	prefix       string
}

// NewService constructs a dashboard service instance.
func NewService(exams exam.ExamStore, results exam.ResultStore, rdb *redis.Client, logger zerolog.Logger, opts ServiceOptions) *Service {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	limit := opts.RecentLimit
	if limit <= 0 {
		limit = 5
	}
	history := opts.HistoryLimit
	if history <= limit {
		history = 100
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "dashboard"
	}

	return &Service{
		exams:        exams,
		results:      results,
		redis:        rdb,
		logger:       logger.With().Str("component", "dashboard").Logger(),
		cacheTTL:     ttl,
		recentLimit:  limit,
		historyLimit: history,
		prefix:       prefix,
	}
}

// Snapshot returns the user's dashboard, served from cache when fresh.
func (s *Service) Snapshot(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	key := fmt.Sprintf("%s:%s", s.prefix, userID)

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, key).Bytes(); err == nil {
			var snap Snapshot
			if err := json.Unmarshal(cached, &snap); err == nil {
				return &snap, nil
			}
			// Corrupt cache entry; rebuild below.
			s.redis.Del(ctx, key)
		}
	}

	snap, err := s.build(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if payload, err := json.Marshal(snap); err == nil {
			if err := s.redis.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("cache dashboard snapshot")
			}
		}
	}
	return snap, nil
}

// Invalidate drops the cached snapshot, typically after an exam submission.
func (s *Service) Invalidate(ctx context.Context, userID uuid.UUID) {
	if s.redis == nil {
		return
	}
	key := fmt.Sprintf("%s:%s", s.prefix, userID)
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("invalidate dashboard snapshot")
	}
}

// build aggregates the statistics over the user's history and trims only the
// recent_* slices to the display limit. Lists arrive newest first.
func (s *Service) build(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	exams, err := s.exams.ListExams(ctx, userID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	results, err := s.results.ListResults(ctx, userID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	snap := &Snapshot{
		RecentExams:   make([]ExamSummary, 0, s.recentLimit),
		RecentResults: make([]ResultSummary, 0, s.recentLimit),
		GeneratedAt:   time.Now().UTC(),
	}

	for _, e := range exams {
		snap.TotalExams++
		if e.Status == exam.StatusCompleted {
			snap.CompletedExams++
		}
		if len(snap.RecentExams) < s.recentLimit {
			snap.RecentExams = append(snap.RecentExams, ExamSummary{
				ID:            e.ID,
				ExamType:      e.ExamType,
				Subjects:      e.Configuration.Subjects,
				QuestionCount: len(e.Questions),
				Status:        e.Status,
				CreatedAt:     e.CreatedAt,
			})
		}
	}

	sum := 0.0
	for _, r := range results {
		sum += r.Percentage
		if r.Percentage > snap.BestPercentage {
			snap.BestPercentage = r.Percentage
		}
		if len(snap.RecentResults) < s.recentLimit {
			snap.RecentResults = append(snap.RecentResults, ResultSummary{
				ExamID:           r.ExamID,
				Score:            r.Score,
				TotalQuestions:   r.TotalQuestions,
				Percentage:       r.Percentage,
				TimeTakenMinutes: r.TimeTakenMinutes,
				CreatedAt:        r.CreatedAt,
			})
		}
	}
	if len(results) > 0 {
		snap.AveragePercentage = sum / float64(len(results))
	}

	return snap, nil
}
