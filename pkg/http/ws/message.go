package ws

import "encoding/json"

// MessageType constants for the WebSocket protocol.
const (
	// Client -> Server
	TypeWatchExam   = "watch_exam"
	TypeUnwatchExam = "unwatch_exam"
	TypePing        = "ping"

	// Server -> Client
	TypeGenerationProgress = "generation_progress"
	TypeError              = "error"
	TypePong               = "pong"
)

// Message wraps all WebSocket payloads with a type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// WatchExamPayload subscribes the client to generation progress for one exam.
type WatchExamPayload struct {
	ExamID string `json:"exam_id"`
}

// UnwatchExamPayload removes the subscription.
type UnwatchExamPayload struct {
	ExamID string `json:"exam_id"`
}

// ErrorPayload reports a protocol-level error to the client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
