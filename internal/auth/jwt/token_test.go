package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGenerateAndValidateRoundTrip(t *testing.T) {
	mgr := NewManager(TokenConfig{Secret: []byte("secret"), TTL: time.Hour})
	userID := uuid.New()

	token, err := mgr.Generate(userID, "user@example.com", "session-1")
	assert.NoError(t, err)

	claims, err := mgr.Validate(token)
	assert.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "session-1", claims.SessionID)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	mgr := NewManager(TokenConfig{Secret: []byte("secret-a")})
	other := NewManager(TokenConfig{Secret: []byte("secret-b")})

	token, err := mgr.Generate(uuid.New(), "u@e.com", "s")
	assert.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	mgr := NewManager(TokenConfig{Secret: []byte("secret"), TTL: -time.Minute})

	token, err := mgr.Generate(uuid.New(), "u@e.com", "s")
	assert.NoError(t, err)

	_, err = mgr.Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	mgr := NewManager(TokenConfig{Secret: []byte("secret")})
	_, err := mgr.Validate("not.a.token")
	assert.Error(t, err)
}

func TestManagerDefaults(t *testing.T) {
	mgr := NewManager(TokenConfig{Secret: []byte("secret")})
	assert.Equal(t, 24*time.Hour, mgr.TTL())
}
