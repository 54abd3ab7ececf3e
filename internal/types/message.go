package types

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type MessageTime struct {
	Created   int64 `json:"created"`
	Updated   int64 `json:"updated,omitempty"`
	Completed int64 `json:"completed,omitempty"`
}

type TokenUsage struct {
	Input     int64 `json:"input,omitempty"`
	Output    int64 `json:"output,omitempty"`
	Reasoning int64 `json:"reasoning,omitempty"`
	CacheRead int64 `json:"cacheRead,omitempty"`
}

// MessageError is the terminal error recorded on an assistant message.
// Aborted errors represent a user-initiated cancellation and are not
// surfaced as notifications.
type MessageError struct {
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
}

const abortedErrorName = "MessageAbortedError"

func (e *MessageError) Aborted() bool {
	return e != nil && e.Name == abortedErrorName
}

type Message struct {
	ID        string        `json:"id"`
	SessionID string        `json:"sessionID"`
	Role      MessageRole   `json:"role"`
	Time      MessageTime   `json:"time"`
	Tokens    *TokenUsage   `json:"tokens,omitempty"`
	Cost      float64       `json:"cost,omitempty"`
	Error     *MessageError `json:"error,omitempty"`
}
