package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prepforge/exam-portal/internal/auth"
	httperrors "github.com/prepforge/exam-portal/pkg/http/errors"
)

// HTTPHandler exposes the dashboard endpoint.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandler constructs a dashboard HTTP handler.
func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "dashboard_http").Logger(),
	}
}

// HandleGet responds with the caller's dashboard snapshot.
// Route: GET /v1/dashboard
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "authentication required")
		return
	}

	snap, err := h.svc.Snapshot(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID.String()).Msg("build dashboard snapshot")
		httperrors.RespondInternalError(w, "failed to load dashboard")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		h.logger.Warn().Err(err).Msg("encode dashboard response")
	}
}
