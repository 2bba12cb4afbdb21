package exam

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/prepforge/exam-portal/internal/auth"
	httperrors "github.com/prepforge/exam-portal/pkg/http/errors"
	ws "github.com/prepforge/exam-portal/pkg/http/ws"
)

// HTTPHandlers provides REST + WebSocket endpoints for the exam lifecycle.
type HTTPHandlers struct {
	svc      *Service
	tracker  *StatusTracker
	hub      *ws.Hub
	authSvc  *auth.Service
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHTTPHandlers creates exam endpoint handlers. tracker and hub may be nil
// when progress tracking is not wired.
func NewHTTPHandlers(svc *Service, tracker *StatusTracker, hub *ws.Hub, authSvc *auth.Service, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		svc:     svc,
		tracker: tracker,
		hub:     hub,
		authSvc: authSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// Create handles POST /v1/exams
func (h *HTTPHandlers) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	var cfg Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	exam, err := h.svc.CreateExam(r.Context(), userID, cfg)
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidExamConfig, cfgErr.Error())
			return
		}
		h.logger.Error().Err(err).Msg("exam creation failed")
		httperrors.RespondInternalError(w, "Failed to create exam")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Exam created successfully",
		"exam":    exam,
	})
}

// Get handles GET /v1/exams/{id}
func (h *HTTPHandlers) Get(w http.ResponseWriter, r *http.Request) {
	userID, examID, ok := h.examRequest(w, r)
	if !ok {
		return
	}

	exam, err := h.svc.GetExam(r.Context(), userID, examID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, exam)
}

// Start handles POST /v1/exams/{id}/start
func (h *HTTPHandlers) Start(w http.ResponseWriter, r *http.Request) {
	userID, examID, ok := h.examRequest(w, r)
	if !ok {
		return
	}

	if err := h.svc.StartExam(r.Context(), userID, examID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"message": "Exam started successfully"})
}

// Submit handles POST /v1/exams/{id}/submit
func (h *HTTPHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	userID, examID, ok := h.examRequest(w, r)
	if !ok {
		return
	}

	var req struct {
		Answers map[string]int `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	result, err := h.svc.SubmitExam(r.Context(), userID, examID, req.Answers)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Exam submitted successfully",
		"result":  result,
	})
}

// Result handles GET /v1/exams/{id}/result
func (h *HTTPHandlers) Result(w http.ResponseWriter, r *http.Request) {
	userID, examID, ok := h.examRequest(w, r)
	if !ok {
		return
	}

	result, err := h.svc.GetResult(r.Context(), userID, examID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// GenerationStatus handles GET /v1/exams/{id}/generation-status
func (h *HTTPHandlers) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	userID, examID, ok := h.examRequest(w, r)
	if !ok {
		return
	}

	if h.tracker != nil {
		if status, err := h.tracker.Get(r.Context(), examID); err == nil && status != nil {
			h.respondJSON(w, http.StatusOK, status)
			return
		}
	}

	// No live tracking entry: fall back to the stored exam. An exam that
	// exists has a complete question list.
	if _, err := h.svc.GetExam(r.Context(), userID, examID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"exam_id":  examID.String(),
		"status":   GenerationStatusCompleted,
		"progress": 100,
	})
}

// HandleWebSocket handles GET /ws/exams. Clients authenticate with a token
// query parameter and then watch exams for generation-progress pushes.
func (h *HTTPHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	claims, err := h.authSvc.ValidateToken(r.Context(), token)
	if err != nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid or expired token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	userID := claims.UserID
	wsConn := ws.NewConnection(conn, h.logger)
	h.hub.RegisterConnection(userID, wsConn)
	go wsConn.WritePump()

	defer h.hub.UnregisterConnection(userID, wsConn)
	for {
		msg, err := wsConn.ReadMessage()
		if err != nil {
			return
		}
		h.handleWSMessage(r, userID, wsConn, msg)
	}
}

func (h *HTTPHandlers) handleWSMessage(r *http.Request, userID uuid.UUID, conn *ws.Connection, msg ws.Message) {
	switch msg.Type {
	case ws.TypePing:
		_ = conn.Send(ws.Message{Type: ws.TypePong, RequestID: msg.RequestID})

	case ws.TypeWatchExam:
		var payload ws.WatchExamPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			h.sendWSError(conn, msg.RequestID, httperrors.ErrCodeInvalidRequest, "invalid payload")
			return
		}
		examID, err := uuid.Parse(payload.ExamID)
		if err != nil {
			h.sendWSError(conn, msg.RequestID, httperrors.ErrCodeInvalidRequest, "invalid exam id")
			return
		}
		// Ownership check before subscribing.
		if _, err := h.svc.GetExam(r.Context(), userID, examID); err != nil {
			h.sendWSError(conn, msg.RequestID, httperrors.ErrCodeExamNotFound, "exam not found")
			return
		}
		h.hub.WatchExam(examID, userID)

	case ws.TypeUnwatchExam:
		var payload ws.UnwatchExamPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		if examID, err := uuid.Parse(payload.ExamID); err == nil {
			h.hub.UnwatchExam(examID, userID)
		}

	default:
		h.sendWSError(conn, msg.RequestID, httperrors.ErrCodeInvalidRequest, "unknown message type")
	}
}

func (h *HTTPHandlers) sendWSError(conn *ws.Connection, requestID, code, message string) {
	payload, _ := json.Marshal(ws.ErrorPayload{Code: code, Message: message})
	_ = conn.Send(ws.Message{Type: ws.TypeError, Payload: payload, RequestID: requestID})
}

// examRequest extracts the authenticated user and the {id} path value.
func (h *HTTPHandlers) examRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return uuid.Nil, uuid.Nil, false
	}

	examID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid exam id")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, examID, true
}

func (h *HTTPHandlers) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrExamNotFound):
		httperrors.RespondNotFound(w, httperrors.ErrCodeExamNotFound, "Exam not found")
	case errors.Is(err, ErrResultNotFound):
		httperrors.RespondNotFound(w, httperrors.ErrCodeResultNotFound, "Result not found")
	case errors.Is(err, ErrInvalidState):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidExamState, err.Error())
	default:
		h.logger.Error().Err(err).Msg("exam request failed")
		httperrors.RespondInternalError(w, "Internal error")
	}
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error().Err(err).Msg("encode response failed")
	}
}
