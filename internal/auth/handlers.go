package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	httperrors "github.com/prepforge/exam-portal/pkg/http/errors"
)

// HTTPHandlers provides REST endpoints for authentication.
type HTTPHandlers struct {
	authSvc  *Service
	oauthSvc *OAuthService
	logger   zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for auth endpoints.
func NewHTTPHandlers(authSvc *Service, oauthSvc *OAuthService, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		authSvc:  authSvc,
		oauthSvc: oauthSvc,
		logger:   logger,
	}
}

// Register handles POST /v1/auth/register
func (h *HTTPHandlers) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	user, token, err := h.authSvc.Register(r.Context(), req, DeviceInfoFromRequest(r))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeRegistrationFailed, err.Error())
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "User registered successfully",
		"token":      token.Token,
		"expires_in": token.ExpiresIn,
		"user":       user,
	})
}

// Login handles POST /v1/auth/login
func (h *HTTPHandlers) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	user, token, err := h.authSvc.Login(r.Context(), req, DeviceInfoFromRequest(r))
	if err != nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeLoginFailed, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Login successful",
		"token":      token.Token,
		"expires_in": token.ExpiresIn,
		"user":       user,
	})
}

// GetMe handles GET /v1/auth/me
func (h *HTTPHandlers) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	user, err := h.authSvc.GetUser(r.Context(), claims.UserID)
	if err != nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "User not found")
		return
	}
	h.respondJSON(w, http.StatusOK, user)
}

// GetSessions handles GET /v1/auth/sessions
func (h *HTTPHandlers) GetSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	sessions, err := h.authSvc.Sessions(r.Context(), claims.UserID)
	if err != nil {
		httperrors.RespondInternalError(w, "Failed to load sessions")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"active_sessions": sessions})
}

// Logout handles POST /v1/auth/logout
func (h *HTTPHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	if err := h.authSvc.Logout(r.Context(), claims.UserID, claims.SessionID); err != nil {
		httperrors.RespondInternalError(w, "Logout failed")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"message": "Logged out successfully"})
}

// LogoutOthers handles POST /v1/auth/logout-others
func (h *HTTPHandlers) LogoutOthers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	if err := h.authSvc.LogoutOtherDevices(r.Context(), claims.UserID, claims.SessionID); err != nil {
		httperrors.RespondInternalError(w, "Logout failed")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"message": "Logged out from all other devices"})
}

// OAuthStart handles GET /v1/oauth/{provider}/start
func (h *HTTPHandlers) OAuthStart(w http.ResponseWriter, r *http.Request) {
	if h.oauthSvc == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeOAuthNotConfigured, "OAuth not configured")
		return
	}

	provider := r.PathValue("provider")
	state := randomState()

	authURL, err := h.oauthSvc.StartFlow(provider, state)
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeOAuthStartFailed, err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// OAuthCallback handles GET /v1/oauth/{provider}/callback
func (h *HTTPHandlers) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauthSvc == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeOAuthNotConfigured, "OAuth not configured")
		return
	}

	provider := r.PathValue("provider")
	code := r.URL.Query().Get("code")
	if code == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeOAuthMissingCode, "Missing authorization code")
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeOAuthInvalidState, "State mismatch")
		return
	}

	info, err := h.oauthSvc.HandleCallback(r.Context(), provider, code)
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeOAuthCallbackFailed, err.Error())
		return
	}

	user, token, err := h.authSvc.LoginWithGoogle(r.Context(), *info, DeviceInfoFromRequest(r))
	if err != nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeLoginFailed, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Google authentication successful",
		"token":      token.Token,
		"expires_in": token.ExpiresIn,
		"user":       user,
	})
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error().Err(err).Msg("encode response failed")
	}
}

func randomState() string {
	buf := make([]byte, 24)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}
