package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prepforge/exam-portal/internal/exam"
)

// ResultRepository stores scoring records, one per completed exam. It
// implements exam.ResultStore.
type ResultRepository struct {
	db DBTX
}

// NewResultRepository creates a result repository over a pgx pool.
func NewResultRepository(db DBTX) *ResultRepository {
	return &ResultRepository{db: db}
}

var _ exam.ResultStore = (*ResultRepository)(nil)

// InsertResult persists a result document keyed by its exam.
func (r *ResultRepository) InsertResult(ctx context.Context, res *exam.Result) error {
	doc, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO results (exam_id, user_id, document, created_at)
		VALUES ($1, $2, $3, $4)`,
		res.ExamID, res.UserID, doc, res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// GetResult fetches the result for an exam owned by userID.
func (r *ResultRepository) GetResult(ctx context.Context, examID, userID uuid.UUID) (*exam.Result, error) {
	row := r.db.QueryRow(ctx,
		`SELECT document FROM results WHERE exam_id = $1 AND user_id = $2`,
		examID, userID)

	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, exam.ErrResultNotFound
		}
		return nil, fmt.Errorf("scan result: %w", err)
	}

	var res exam.Result
	if err := json.Unmarshal(doc, &res); err != nil {
		return nil, fmt.Errorf("decode result document: %w", err)
	}
	return &res, nil
}

// ListResults returns the user's most recent results, newest first.
func (r *ResultRepository) ListResults(ctx context.Context, userID uuid.UUID, limit int) ([]*exam.Result, error) {
	rows, err := r.db.Query(ctx, `
		SELECT document FROM results
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []*exam.Result
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var res exam.Result
		if err := json.Unmarshal(doc, &res); err != nil {
			return nil, fmt.Errorf("decode result document: %w", err)
		}
		results = append(results, &res)
	}
	return results, rows.Err()
}
