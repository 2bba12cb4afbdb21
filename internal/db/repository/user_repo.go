package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prepforge/exam-portal/internal/auth"
)

// UserRepository persists user accounts. It implements auth.UserStore.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a user repository over a pgx pool.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

var _ auth.UserStore = (*UserRepository)(nil)

// CreateUser inserts a new account.
func (r *UserRepository) CreateUser(ctx context.Context, user *auth.User) error {
	targetExams, err := json.Marshal(user.TargetExams)
	if err != nil {
		return fmt.Errorf("marshal target exams: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO users (user_id, email, password_hash, full_name, phone, profile_picture, target_exams, school, class_level, google_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		user.ID, user.Email, user.PasswordHash, user.FullName, user.Phone,
		user.ProfilePicture, targetExams, user.School, user.ClassLevel,
		user.GoogleID, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByEmail fetches a user by email, returning (nil, nil) when absent.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getUser(ctx, `WHERE email = $1`, email)
}

// GetUserByID fetches a user by id, returning (nil, nil) when absent.
func (r *UserRepository) GetUserByID(ctx context.Context, userID uuid.UUID) (*auth.User, error) {
	return r.getUser(ctx, `WHERE user_id = $1`, userID)
}

// UpdateLastLogin records the most recent login timestamp.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login = $2 WHERE user_id = $1`, userID, at)
	return err
}

func (r *UserRepository) getUser(ctx context.Context, where string, arg any) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT user_id, email, password_hash, full_name, phone, profile_picture, target_exams, school, class_level, google_id, created_at, last_login
		FROM users `+where, arg)

	var (
		user        auth.User
		targetExams []byte
	)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FullName,
		&user.Phone, &user.ProfilePicture, &targetExams, &user.School,
		&user.ClassLevel, &user.GoogleID, &user.CreatedAt, &user.LastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if len(targetExams) > 0 {
		if err := json.Unmarshal(targetExams, &user.TargetExams); err != nil {
			return nil, fmt.Errorf("decode target exams: %w", err)
		}
	}
	return &user, nil
}
