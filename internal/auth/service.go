package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prepforge/exam-portal/internal/auth/jwt"
)

// UserStore persists user accounts. Lookups return (nil, nil) when no row
// matches.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*User, error)
	UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
}

// SessionBackend tracks active sessions per user. SessionStore is the Redis
// implementation.
type SessionBackend interface {
	Open(ctx context.Context, userID uuid.UUID, sessionID string, device DeviceInfo) error
	IsValid(ctx context.Context, userID uuid.UUID, sessionID string) (bool, error)
	List(ctx context.Context, userID uuid.UUID) ([]Session, error)
	Remove(ctx context.Context, userID uuid.UUID, sessionID string) error
	Clear(ctx context.Context, userID uuid.UUID) error
	ClearOthers(ctx context.Context, userID uuid.UUID, keepSessionID string) error
}

// Service handles authentication and session bookkeeping.
type Service struct {
	users    UserStore
	tokenMgr *jwt.Manager
	sessions SessionBackend
	logger   zerolog.Logger
}

// ServiceOptions configures the auth service.
type ServiceOptions struct {
	TokenConfig jwt.TokenConfig
	Sessions    SessionBackend
}

// NewService creates an authentication service.
func NewService(users UserStore, opts ServiceOptions, logger zerolog.Logger) *Service {
	return &Service{
		users:    users,
		tokenMgr: jwt.NewManager(opts.TokenConfig),
		sessions: opts.Sessions,
		logger:   logger.With().Str("component", "auth_service").Logger(),
	}
}

// Register creates a new account and opens its first session.
func (s *Service) Register(ctx context.Context, req RegisterRequest, device DeviceInfo) (*User, *TokenResponse, error) {
	if req.Email == "" {
		return nil, nil, fmt.Errorf("email required")
	}
	if req.FullName == "" {
		return nil, nil, fmt.Errorf("full name required")
	}

	existing, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup email: %w", err)
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("email already registered")
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return nil, nil, err
	}

	user := &User{
		ID:           uuid.New(),
		Email:        req.Email,
		FullName:     req.FullName,
		Phone:        req.Phone,
		TargetExams:  req.TargetExams,
		School:       req.School,
		ClassLevel:   req.ClassLevel,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.openSession(ctx, user, device)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().Str("user_id", user.ID.String()).Str("email", user.Email).Msg("user registered")
	return user, token, nil
}

// Login authenticates with email/password and opens a fresh session,
// evicting older ones past the per-user cap.
func (s *Service) Login(ctx context.Context, req LoginRequest, device DeviceInfo) (*User, *TokenResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup email: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, nil, fmt.Errorf("invalid credentials")
	}
	if err := VerifyPassword(user.PasswordHash, req.Password); err != nil {
		return nil, nil, fmt.Errorf("invalid credentials")
	}

	_ = s.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC())

	token, err := s.openSession(ctx, user, device)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("user logged in")
	return user, token, nil
}

// LoginWithGoogle signs in (or signs up) a user from verified Google
// profile data.
func (s *Service) LoginWithGoogle(ctx context.Context, info OAuthUserInfo, device DeviceInfo) (*User, *TokenResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, info.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup email: %w", err)
	}

	if user == nil {
		user = &User{
			ID:             uuid.New(),
			Email:          info.Email,
			FullName:       info.Name,
			ProfilePicture: info.AvatarURL,
			GoogleID:       info.ProviderID,
			CreatedAt:      time.Now().UTC(),
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, nil, fmt.Errorf("create user: %w", err)
		}
		s.logger.Info().Str("user_id", user.ID.String()).Msg("user created via google oauth")
	}

	_ = s.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC())

	token, err := s.openSession(ctx, user, device)
	if err != nil {
		return nil, nil, err
	}
	return user, token, nil
}

// GetUser resolves a user by id.
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}
	return user, nil
}

// ValidateToken verifies the bearer token and checks that its session is
// still among the user's active sessions.
func (s *Service) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := s.tokenMgr.Validate(token)
	if err != nil {
		return nil, err
	}

	if s.sessions != nil && claims.SessionID != "" {
		valid, err := s.sessions.IsValid(ctx, claims.UserID, claims.SessionID)
		if err != nil {
			return nil, fmt.Errorf("check session: %w", err)
		}
		if !valid {
			return nil, fmt.Errorf("session expired or invalid")
		}
	}
	return claims, nil
}

// Sessions lists the user's active sessions.
func (s *Service) Sessions(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	if s.sessions == nil {
		return nil, nil
	}
	return s.sessions.List(ctx, userID)
}

// Logout ends the calling session only; other devices stay logged in. An
// empty sessionID (a token issued without session tracking) clears everything.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, sessionID string) error {
	if s.sessions == nil {
		return nil
	}
	if sessionID == "" {
		return s.sessions.Clear(ctx, userID)
	}
	return s.sessions.Remove(ctx, userID, sessionID)
}

// LogoutOtherDevices keeps only the current session alive.
func (s *Service) LogoutOtherDevices(ctx context.Context, userID uuid.UUID, currentSessionID string) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.ClearOthers(ctx, userID, currentSessionID)
}

func (s *Service) openSession(ctx context.Context, user *User, device DeviceInfo) (*TokenResponse, error) {
	sessionID := uuid.NewString()
	if s.sessions != nil {
		if err := s.sessions.Open(ctx, user.ID, sessionID, device); err != nil {
			return nil, fmt.Errorf("open session: %w", err)
		}
	}

	token, err := s.tokenMgr.Generate(user.ID, user.Email, sessionID)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &TokenResponse{
		Token:     token,
		ExpiresIn: int64(s.tokenMgr.TTL().Seconds()),
	}, nil
}
