package types

type SessionActivity string

const (
	SessionIdle     SessionActivity = "idle"
	SessionBusy     SessionActivity = "busy"
	SessionRetrying SessionActivity = "retrying"
)

func NormalizeSessionActivity(raw string) (SessionActivity, bool) {
	switch SessionActivity(raw) {
	case SessionIdle, SessionBusy, SessionRetrying:
		return SessionActivity(raw), true
	case "working", "running":
		return SessionBusy, true
	case "retry":
		return SessionRetrying, true
	default:
		return "", false
	}
}

type SessionTime struct {
	Created int64 `json:"created"`
	Updated int64 `json:"updated,omitempty"`
}

// Session is one logical agent conversation. A non-empty ParentID marks a
// child session spawned by a sub-agent; its message stream stays separate
// from the parent's.
type Session struct {
	ID        string      `json:"id"`
	ParentID  string      `json:"parentID,omitempty"`
	Directory string      `json:"directory,omitempty"`
	Title     string      `json:"title,omitempty"`
	Version   string      `json:"version,omitempty"`
	Time      SessionTime `json:"time"`
}

func (s *Session) IsChild() bool {
	return s != nil && s.ParentID != ""
}
