package state

import (
	"strings"
	"sync"

	"deck/internal/types"
)

// ChildSessionTracker records parent links for sub-agent sessions so that
// activity addressed to a nested session can be attributed to the
// top-level conversation the user is viewing. Child message streams are
// never merged into the parent's.
type ChildSessionTracker struct {
	mu        sync.Mutex
	parents   map[string]string
	lastState map[string]string
}

const maxChildDepth = 16

func NewChildSessionTracker() *ChildSessionTracker {
	return &ChildSessionTracker{
		parents:   map[string]string{},
		lastState: map[string]string{},
	}
}

func (t *ChildSessionTracker) RegisterChildSession(session types.Session) {
	if !session.IsChild() {
		return
	}
	t.mu.Lock()
	t.parents[session.ID] = session.ParentID
	t.mu.Unlock()
}

// BelongsToSession reports whether candidateID is rootID or one of its
// descendants, following parent links. Depth is bounded so a corrupt
// parent cycle cannot spin.
func (t *ChildSessionTracker) BelongsToSession(candidateID, rootID string) bool {
	candidateID = strings.TrimSpace(candidateID)
	rootID = strings.TrimSpace(rootID)
	if candidateID == "" || rootID == "" {
		return false
	}
	if candidateID == rootID {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	id := candidateID
	for range maxChildDepth {
		parent, ok := t.parents[id]
		if !ok {
			return false
		}
		if parent == rootID {
			return true
		}
		id = parent
	}
	return false
}

func (t *ChildSessionTracker) MarkIdle(sessionID string) {
	t.mark(sessionID, "idle")
}

func (t *ChildSessionTracker) MarkError(sessionID string) {
	t.mark(sessionID, "error")
}

func (t *ChildSessionTracker) mark(sessionID, state string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.parents[sessionID]; !ok {
		return
	}
	t.lastState[sessionID] = state
}

// LastState returns the last idle/error mark recorded for a child session,
// used for summary display on the parent.
func (t *ChildSessionTracker) LastState(sessionID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastState[sessionID]
}
