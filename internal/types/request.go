package types

import "time"

type RequestKind string

const (
	RequestPermission RequestKind = "permission"
	RequestQuestion   RequestKind = "question"
)

// PendingRequest is an outstanding permission or question prompt awaiting
// a human response. At most one live entry exists per ID; a session with
// at least one live request is reported busy regardless of server status.
type PendingRequest struct {
	ID          string      `json:"id"`
	SessionID   string      `json:"sessionID"`
	Kind        RequestKind `json:"kind"`
	Description string      `json:"description,omitempty"`
	AskedAt     time.Time   `json:"askedAt,omitempty"`
}
