package activity

import (
	"sort"
	"strings"
	"sync"

	"deck/internal/logging"
	"deck/internal/types"
)

// Tracker maintains session-id -> activity status plus the set of
// outstanding permission/question requests, and derives the busy list.
//
// Invariant: a session is never reported idle while it still has an
// unresolved pending request. Servers may emit idle before the human has
// answered an outstanding prompt; the idle transition is deferred until
// the last pending request for that session resolves.
type Tracker struct {
	mu           sync.Mutex
	log          logging.Logger
	status       map[string]types.SessionActivity
	pending      map[string]types.PendingRequest
	bySession    map[string]map[string]struct{}
	deferredIdle map[string]struct{}
	busy         []string

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

func NewTracker(log logging.Logger) *Tracker {
	if log == nil {
		log = logging.Nop()
	}
	return &Tracker{
		log:          log,
		status:       map[string]types.SessionActivity{},
		pending:      map[string]types.PendingRequest{},
		bySession:    map[string]map[string]struct{}{},
		deferredIdle: map[string]struct{}{},
	}
}

func (t *Tracker) Subscribe(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	t.subMu.Lock()
	if t.subs == nil {
		t.subs = map[int]func(){}
	}
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.subMu.Unlock()
	return func() {
		t.subMu.Lock()
		delete(t.subs, id)
		t.subMu.Unlock()
	}
}

func (t *Tracker) notify() {
	t.subMu.Lock()
	fns := make([]func(), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Initialize seeds full status state from a pull snapshot, used at startup
// and after reconnect. Pending requests survive; the deferred-idle
// correction is re-applied on top of the fresh statuses.
func (t *Tracker) Initialize(statusMap map[string]types.SessionActivity) {
	t.mu.Lock()
	t.status = map[string]types.SessionActivity{}
	for id, status := range statusMap {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		t.status[id] = status
	}
	for sessionID := range t.deferredIdle {
		if len(t.bySession[sessionID]) == 0 {
			delete(t.deferredIdle, sessionID)
		}
	}
	for sessionID, requests := range t.bySession {
		if len(requests) == 0 {
			continue
		}
		if t.status[sessionID] != types.SessionBusy {
			t.deferredIdle[sessionID] = struct{}{}
			t.status[sessionID] = types.SessionBusy
		}
	}
	t.recompute()
	t.mu.Unlock()
	t.notify()
}

// InitializePendingRequests replaces the pending set from a pull snapshot.
// Requests may reference sessions not yet present in the status map; such
// sessions are synthesized as busy with the idle transition deferred so
// the invariant holds from process start.
func (t *Tracker) InitializePendingRequests(permissions, questions []types.PendingRequest) {
	t.mu.Lock()
	t.pending = map[string]types.PendingRequest{}
	t.bySession = map[string]map[string]struct{}{}
	for _, req := range permissions {
		t.addLocked(req, types.RequestPermission)
	}
	for _, req := range questions {
		t.addLocked(req, types.RequestQuestion)
	}
	t.recompute()
	t.mu.Unlock()
	t.notify()
}

// UpdateStatus applies a single server-reported status transition.
func (t *Tracker) UpdateStatus(sessionID string, status types.SessionActivity) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return
	}
	t.mu.Lock()
	if status == types.SessionIdle && len(t.bySession[sessionID]) > 0 {
		t.deferredIdle[sessionID] = struct{}{}
		t.status[sessionID] = types.SessionBusy
	} else {
		delete(t.deferredIdle, sessionID)
		t.status[sessionID] = status
	}
	t.recompute()
	t.mu.Unlock()
	t.notify()
}

func (t *Tracker) AddPendingRequest(req types.PendingRequest) {
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.SessionID) == "" {
		t.log.Warn("pending request missing ids", logging.F("request_id", req.ID), logging.F("session_id", req.SessionID))
		return
	}
	t.mu.Lock()
	t.addLocked(req, req.Kind)
	t.recompute()
	t.mu.Unlock()
	t.notify()
}

func (t *Tracker) addLocked(req types.PendingRequest, kind types.RequestKind) {
	if req.ID == "" || req.SessionID == "" {
		return
	}
	if kind != "" {
		req.Kind = kind
	}
	t.pending[req.ID] = req
	set, ok := t.bySession[req.SessionID]
	if !ok {
		set = map[string]struct{}{}
		t.bySession[req.SessionID] = set
	}
	set[req.ID] = struct{}{}
	// A live prompt means the session is waiting on the human.
	if t.status[req.SessionID] != types.SessionBusy {
		if t.status[req.SessionID] == "" || t.status[req.SessionID] == types.SessionIdle {
			t.deferredIdle[req.SessionID] = struct{}{}
		}
		t.status[req.SessionID] = types.SessionBusy
	}
}

// ResolvePendingRequest removes a request; resolving the last request for
// a deferred-idle session applies the real idle state.
func (t *Tracker) ResolvePendingRequest(requestID string) {
	t.mu.Lock()
	req, ok := t.pending[requestID]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.pending, requestID)
	if set, ok := t.bySession[req.SessionID]; ok {
		delete(set, requestID)
		if len(set) == 0 {
			delete(t.bySession, req.SessionID)
			if _, deferred := t.deferredIdle[req.SessionID]; deferred {
				delete(t.deferredIdle, req.SessionID)
				t.status[req.SessionID] = types.SessionIdle
			}
		}
	}
	t.recompute()
	t.mu.Unlock()
	t.notify()
}

// recompute rebuilds the memoized busy list; O(active sessions), which is
// fine at conversational event rates. Callers hold t.mu.
func (t *Tracker) recompute() {
	busy := make([]string, 0, len(t.status))
	for id, status := range t.status {
		if status == types.SessionBusy || status == types.SessionRetrying {
			busy = append(busy, id)
		}
	}
	sort.Strings(busy)
	t.busy = busy
}

func (t *Tracker) BusySessions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string{}, t.busy...)
}

func (t *Tracker) BusyCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.busy)
}

func (t *Tracker) Status(sessionID string) types.SessionActivity {
	t.mu.Lock()
	defer t.mu.Unlock()
	status, ok := t.status[sessionID]
	if !ok {
		return types.SessionIdle
	}
	return status
}

// PendingForSession returns live requests for one session, oldest first.
func (t *Tracker) PendingForSession(sessionID string) []types.PendingRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.bySession[sessionID]
	if len(set) == 0 {
		return nil
	}
	out := make([]types.PendingRequest, 0, len(set))
	for id := range set {
		out = append(out, t.pending[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AskedAt.Equal(out[j].AskedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].AskedAt.Before(out[j].AskedAt)
	})
	return out
}

func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
