package types

import "time"

type NotificationType string

const (
	NotificationPermission NotificationType = "permission"
	NotificationQuestion   NotificationType = "question"
	NotificationError      NotificationType = "error"
	NotificationDone       NotificationType = "done"
)

type NotificationEntry struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body,omitempty"`
	SessionID string           `json:"sessionID,omitempty"`
	Directory string           `json:"directory,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	Read      bool             `json:"read,omitempty"`
}
