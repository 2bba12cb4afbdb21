package exam

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	ws "github.com/prepforge/exam-portal/pkg/http/ws"
)

const (
	GenerationStatusGenerating = "generating"
	GenerationStatusCompleted  = "completed"
)

// SubjectProgress is the per-subject slice of a generation status snapshot.
type SubjectProgress struct {
	Requested    int  `json:"requested"`
	Generated    int  `json:"generated"`
	Placeholders int  `json:"placeholders"`
	Done         bool `json:"done"`
}

// GenerationStatus is the stored snapshot behind the generation-status
// endpoint and the WebSocket progress pushes.
type GenerationStatus struct {
	ExamID           string                     `json:"exam_id"`
	Status           string                     `json:"status"`
	Progress         int                        `json:"progress"` // 0-100
	Requested        int                        `json:"requested"`
	Generated        int                        `json:"generated"`
	PlaceholderCount int                        `json:"placeholder_count"`
	Subjects         map[string]SubjectProgress `json:"subjects"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

const statusTTL = time.Hour

// StatusTracker keeps ephemeral generation progress in Redis and pushes
// updates to subscribed WebSocket clients. It implements StatusSink.
type StatusTracker struct {
	mu     sync.Mutex
	redis  *redis.Client
	hub    *ws.Hub
	logger zerolog.Logger
}

// NewStatusTracker creates a tracker. hub may be nil when WebSocket push is
// not wired (tests, CLI tooling).
func NewStatusTracker(redisClient *redis.Client, hub *ws.Hub, logger zerolog.Logger) *StatusTracker {
	return &StatusTracker{
		redis:  redisClient,
		hub:    hub,
		logger: logger.With().Str("component", "generation_status").Logger(),
	}
}

var _ StatusSink = (*StatusTracker)(nil)

func statusKey(examID uuid.UUID) string {
	return fmt.Sprintf("exam:genstatus:%s", examID.String())
}

// Begin records the plan before any chunk is generated.
func (t *StatusTracker) Begin(ctx context.Context, examID uuid.UUID, plan Plan) {
	status := GenerationStatus{
		ExamID:    examID.String(),
		Status:    GenerationStatusGenerating,
		Requested: plan.Total(),
		Subjects:  make(map[string]SubjectProgress, len(plan)),
		UpdatedAt: time.Now().UTC(),
	}
	for _, quota := range plan {
		status.Subjects[quota.Subject] = SubjectProgress{Requested: quota.Count}
	}
	t.store(ctx, examID, status)
}

// SubjectDone marks one subject task finished and recomputes overall progress.
func (t *StatusTracker) SubjectDone(ctx context.Context, examID uuid.UUID, subject string, generated, placeholders int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	status, err := t.Get(ctx, examID)
	if err != nil || status == nil {
		t.logger.Warn().Err(err).Str("exam_id", examID.String()).Msg("subject progress update without base status")
		return
	}

	sp := status.Subjects[subject]
	sp.Generated = generated
	sp.Placeholders = placeholders
	sp.Done = true
	status.Subjects[subject] = sp

	status.Generated = 0
	status.PlaceholderCount = 0
	doneRequested := 0
	for _, p := range status.Subjects {
		if p.Done {
			status.Generated += p.Generated
			status.PlaceholderCount += p.Placeholders
			doneRequested += p.Requested
		}
	}
	if status.Requested > 0 {
		status.Progress = doneRequested * 100 / status.Requested
	}
	status.UpdatedAt = time.Now().UTC()
	t.store(ctx, examID, *status)
}

// Complete marks generation finished with the reconciled totals.
func (t *StatusTracker) Complete(ctx context.Context, examID uuid.UUID, total, placeholders int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	status, err := t.Get(ctx, examID)
	if err != nil || status == nil {
		status = &GenerationStatus{ExamID: examID.String()}
	}
	status.Status = GenerationStatusCompleted
	status.Progress = 100
	status.Generated = total
	status.PlaceholderCount = placeholders
	status.UpdatedAt = time.Now().UTC()
	t.store(ctx, examID, *status)
}

// Get returns the stored snapshot, or nil when none exists.
func (t *StatusTracker) Get(ctx context.Context, examID uuid.UUID) (*GenerationStatus, error) {
	if t.redis == nil {
		return nil, nil
	}
	data, err := t.redis.Get(ctx, statusKey(examID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get generation status: %w", err)
	}
	var status GenerationStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode generation status: %w", err)
	}
	return &status, nil
}

func (t *StatusTracker) store(ctx context.Context, examID uuid.UUID, status GenerationStatus) {
	if t.redis != nil {
		data, err := json.Marshal(status)
		if err != nil {
			t.logger.Error().Err(err).Msg("marshal generation status")
			return
		}
		if err := t.redis.Set(ctx, statusKey(examID), data, statusTTL).Err(); err != nil {
			t.logger.Warn().Err(err).Str("exam_id", examID.String()).Msg("store generation status failed")
		}
	}

	if t.hub != nil {
		payload, err := json.Marshal(status)
		if err != nil {
			return
		}
		id, err := uuid.Parse(status.ExamID)
		if err != nil {
			return
		}
		_ = t.hub.BroadcastToExam(id, ws.Message{
			Type:    ws.TypeGenerationProgress,
			Payload: payload,
		})
	}
}
