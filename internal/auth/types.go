package auth

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered student account.
type User struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	FullName       string     `json:"full_name"`
	Phone          string     `json:"phone,omitempty"`
	ProfilePicture string     `json:"profile_picture,omitempty"`
	TargetExams    []string   `json:"target_exam"`
	School         string     `json:"school,omitempty"`
	ClassLevel     string     `json:"class_level,omitempty"`
	GoogleID       string     `json:"-"`
	PasswordHash   string     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
}

// TokenResponse carries an issued bearer credential.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// RegisterRequest for email/password registration.
type RegisterRequest struct {
	Email       string   `json:"email"`
	FullName    string   `json:"full_name"`
	Password    string   `json:"password"`
	Phone       string   `json:"phone"`
	TargetExams []string `json:"target_exam"`
	School      string   `json:"school"`
	ClassLevel  string   `json:"class_level"`
}

// LoginRequest for email/password authentication.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OAuthProvider constants.
const OAuthProviderGoogle = "google"
