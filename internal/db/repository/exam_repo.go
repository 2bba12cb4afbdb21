package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prepforge/exam-portal/internal/exam"
)

// ExamRepository stores exams as opaque JSONB documents with a thin column
// index (owner, status) for querying. It implements exam.ExamStore.
type ExamRepository struct {
	db DBTX
}

// NewExamRepository creates an exam repository over a pgx pool.
func NewExamRepository(db DBTX) *ExamRepository {
	return &ExamRepository{db: db}
}

var _ exam.ExamStore = (*ExamRepository)(nil)

// InsertExam persists a freshly created exam document.
func (r *ExamRepository) InsertExam(ctx context.Context, e *exam.Exam) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal exam: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO exams (exam_id, user_id, status, document, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.UserID, e.Status, doc, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}
	return nil
}

// GetExam fetches an exam owned by userID.
func (r *ExamRepository) GetExam(ctx context.Context, examID, userID uuid.UUID) (*exam.Exam, error) {
	row := r.db.QueryRow(ctx,
		`SELECT document FROM exams WHERE exam_id = $1 AND user_id = $2`,
		examID, userID)

	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, exam.ErrExamNotFound
		}
		return nil, fmt.Errorf("scan exam: %w", err)
	}

	var e exam.Exam
	if err := json.Unmarshal(doc, &e); err != nil {
		return nil, fmt.Errorf("decode exam document: %w", err)
	}
	return &e, nil
}

// MarkStarted patches the document to the ongoing state. Last-write-wins;
// the service checks state before calling.
func (r *ExamRepository) MarkStarted(ctx context.Context, examID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE exams
		SET status = $2,
		    document = document || jsonb_build_object('status', $2::text, 'start_time', $3::text)
		WHERE exam_id = $1`,
		examID, exam.StatusOngoing, at.Format(time.RFC3339Nano),
	)
	return err
}

// MarkCompleted patches the document to the completed state with the
// submitted answers attached.
func (r *ExamRepository) MarkCompleted(ctx context.Context, examID uuid.UUID, at time.Time, answers map[string]int) error {
	answersDoc, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		UPDATE exams
		SET status = $2,
		    document = document || jsonb_build_object('status', $2::text, 'end_time', $3::text, 'answers', $4::jsonb)
		WHERE exam_id = $1`,
		examID, exam.StatusCompleted, at.Format(time.RFC3339Nano), answersDoc,
	)
	return err
}

// ListExams returns the user's most recent exams, newest first.
func (r *ExamRepository) ListExams(ctx context.Context, userID uuid.UUID, limit int) ([]*exam.Exam, error) {
	rows, err := r.db.Query(ctx, `
		SELECT document FROM exams
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	defer rows.Close()

	var exams []*exam.Exam
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan exam: %w", err)
		}
		var e exam.Exam
		if err := json.Unmarshal(doc, &e); err != nil {
			return nil, fmt.Errorf("decode exam document: %w", err)
		}
		exams = append(exams, &e)
	}
	return exams, rows.Err()
}
