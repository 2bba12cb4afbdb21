package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DeviceInfo captures where a session was opened from.
type DeviceInfo struct {
	DeviceType string `json:"device_type"`
	Browser    string `json:"browser"`
	UserAgent  string `json:"user_agent"`
	IPAddress  string `json:"ip_address"`
}

// Session is one active login. A user holds at most MaxSessions of these;
// opening a new one evicts the oldest.
type Session struct {
	SessionID    string     `json:"session_id"`
	DeviceInfo   DeviceInfo `json:"device_info"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity time.Time  `json:"last_activity"`
}

// SessionStore keeps per-user session lists in Redis. Updates are
// last-write-wins; there is no locking across concurrent logins.
type SessionStore struct {
	redis       *redis.Client
	maxSessions int
	ttl         time.Duration
	logger      zerolog.Logger
}

// NewSessionStore creates a session store. maxSessions <= 0 defaults to a
// single active session per user.
func NewSessionStore(redisClient *redis.Client, maxSessions int, ttl time.Duration, logger zerolog.Logger) *SessionStore {
	if maxSessions <= 0 {
		maxSessions = 1
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{
		redis:       redisClient,
		maxSessions: maxSessions,
		ttl:         ttl,
		logger:      logger.With().Str("component", "session_store").Logger(),
	}
}

var _ SessionBackend = (*SessionStore)(nil)

func sessionKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:sessions:%s", userID.String())
}

// Open registers a new session, evicting the oldest entries past the cap.
func (s *SessionStore) Open(ctx context.Context, userID uuid.UUID, sessionID string, device DeviceInfo) error {
	sessions, err := s.list(ctx, userID)
	if err != nil {
		return err
	}

	if len(sessions) >= s.maxSessions {
		sessions = sessions[len(sessions)-(s.maxSessions-1):]
	}
	now := time.Now().UTC()
	sessions = append(sessions, Session{
		SessionID:    sessionID,
		DeviceInfo:   device,
		CreatedAt:    now,
		LastActivity: now,
	})
	return s.save(ctx, userID, sessions)
}

// IsValid reports whether sessionID is among the user's active sessions.
func (s *SessionStore) IsValid(ctx context.Context, userID uuid.UUID, sessionID string) (bool, error) {
	sessions, err := s.list(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, sess := range sessions {
		if sess.SessionID == sessionID {
			return true, nil
		}
	}
	return false, nil
}

// List returns the user's active sessions.
func (s *SessionStore) List(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	return s.list(ctx, userID)
}

// Remove deletes one session, leaving the user's other devices logged in.
func (s *SessionStore) Remove(ctx context.Context, userID uuid.UUID, sessionID string) error {
	sessions, err := s.list(ctx, userID)
	if err != nil {
		return err
	}
	kept := sessions[:0]
	for _, sess := range sessions {
		if sess.SessionID != sessionID {
			kept = append(kept, sess)
		}
	}
	if len(kept) == 0 {
		return s.redis.Del(ctx, sessionKey(userID)).Err()
	}
	return s.save(ctx, userID, kept)
}

// Clear removes every session for the user (full logout).
func (s *SessionStore) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.redis.Del(ctx, sessionKey(userID)).Err()
}

// ClearOthers keeps only the named session, logging the user out everywhere
// else.
func (s *SessionStore) ClearOthers(ctx context.Context, userID uuid.UUID, keepSessionID string) error {
	sessions, err := s.list(ctx, userID)
	if err != nil {
		return err
	}
	kept := sessions[:0]
	for _, sess := range sessions {
		if sess.SessionID == keepSessionID {
			kept = append(kept, sess)
		}
	}
	return s.save(ctx, userID, kept)
}

func (s *SessionStore) list(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	data, err := s.redis.Get(ctx, sessionKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}
	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return sessions, nil
}

func (s *SessionStore) save(ctx context.Context, userID uuid.UUID, sessions []Session) error {
	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}
	return s.redis.Set(ctx, sessionKey(userID), data, s.ttl).Err()
}

// DeviceInfoFromRequest extracts coarse device details from request headers.
func DeviceInfoFromRequest(r *http.Request) DeviceInfo {
	userAgent := r.Header.Get("User-Agent")

	deviceType := "Unknown"
	switch {
	case strings.Contains(userAgent, "Mobile"):
		deviceType = "Mobile"
	case strings.Contains(userAgent, "Tablet"):
		deviceType = "Tablet"
	case strings.Contains(userAgent, "Windows"), strings.Contains(userAgent, "Macintosh"), strings.Contains(userAgent, "Linux"):
		deviceType = "Desktop"
	}

	browser := "Unknown"
	switch {
	case strings.Contains(userAgent, "Edge"):
		browser = "Edge"
	case strings.Contains(userAgent, "Chrome"):
		browser = "Chrome"
	case strings.Contains(userAgent, "Firefox"):
		browser = "Firefox"
	case strings.Contains(userAgent, "Safari"):
		browser = "Safari"
	}

	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}

	return DeviceInfo{
		DeviceType: deviceType,
		Browser:    browser,
		UserAgent:  userAgent,
		IPAddress:  host,
	}
}
