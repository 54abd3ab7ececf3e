package types

import "encoding/json"

// Event is the envelope for every record on the server's multiplexed push
// stream. Properties is decoded per Type by the dispatch layer.
type Event struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

const (
	EventSessionCreated = "session.created"
	EventSessionUpdated = "session.updated"
	EventSessionIdle    = "session.idle"
	EventSessionError   = "session.error"
	EventSessionStatus  = "session.status"

	EventMessageUpdated = "message.updated"
	EventPartUpdated    = "message.part.updated"
	EventPartDelta      = "message.part.delta"
	EventPartRemoved    = "message.part.removed"

	EventPermissionAsked   = "permission.asked"
	EventPermissionReplied = "permission.replied"

	EventQuestionAsked    = "question.asked"
	EventQuestionReplied  = "question.replied"
	EventQuestionRejected = "question.rejected"
)

type SessionEventPayload struct {
	Info Session `json:"info"`
}

type SessionStatusPayload struct {
	SessionID string `json:"sessionID"`
	Status    string `json:"status"`
}

type SessionErrorPayload struct {
	SessionID string        `json:"sessionID"`
	Error     *MessageError `json:"error,omitempty"`
}

type SessionIdlePayload struct {
	SessionID string `json:"sessionID"`
}

type MessageEventPayload struct {
	Info Message `json:"info"`
}

type PartEventPayload struct {
	Part Part `json:"part"`
}

type PartDeltaPayload struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
	PartID    string `json:"partID"`
	Text      string `json:"text"`
}

type PartRemovedPayload struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
	PartID    string `json:"partID"`
}

type PermissionPayload struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionID"`
	Title     string `json:"title,omitempty"`
	Metadata  any    `json:"metadata,omitempty"`
}

type QuestionPayload struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionID"`
	Text      string `json:"text,omitempty"`
}

type RequestResolvedPayload struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionID,omitempty"`
}
