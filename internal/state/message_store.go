package state

import (
	"strings"
	"sync"

	"deck/internal/logging"
	"deck/internal/types"
)

// MessageStore owns the per-session ordered message and part collections.
// Only the dispatch layer calls the mutating Handle* methods; readers take
// immutable snapshots via SessionState and subscribe for change signals.
type MessageStore struct {
	mu       sync.Mutex
	log      logging.Logger
	sessions map[string]*sessionState
	current  string

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

type sessionState struct {
	order     []*messageState
	byID      map[string]*messageState
	streaming bool
	lastError *types.MessageError
}

type messageState struct {
	info  types.Message
	parts []*types.Part
	byID  map[string]*types.Part
}

// MessageSnapshot pairs a message with its parts in server order.
type MessageSnapshot struct {
	Info  types.Message
	Parts []types.Part
}

type SessionSnapshot struct {
	Messages  []MessageSnapshot
	Streaming bool
	LastError *types.MessageError
}

func NewMessageStore(log logging.Logger) *MessageStore {
	if log == nil {
		log = logging.Nop()
	}
	return &MessageStore{
		log:      log,
		sessions: map[string]*sessionState{},
		subs:     map[int]func(){},
	}
}

func (s *MessageStore) Subscribe(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *MessageStore) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *MessageStore) SetCurrentSession(sessionID string) {
	s.mu.Lock()
	s.current = strings.TrimSpace(sessionID)
	s.mu.Unlock()
	s.notify()
}

func (s *MessageStore) CurrentSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// HandleMessageUpdated upserts by message id. Absent messages are appended;
// the server delivers messages in creation order and the store never
// re-sorts.
func (s *MessageStore) HandleMessageUpdated(msg types.Message) {
	if msg.ID == "" || msg.SessionID == "" {
		s.log.Warn("message update missing ids", logging.F("message_id", msg.ID), logging.F("session_id", msg.SessionID))
		return
	}
	s.mu.Lock()
	sess := s.session(msg.SessionID)
	if existing, ok := sess.byID[msg.ID]; ok {
		existing.info = msg
	} else {
		ms := &messageState{info: msg, byID: map[string]*types.Part{}}
		sess.byID[msg.ID] = ms
		sess.order = append(sess.order, ms)
	}
	if msg.Role == types.RoleAssistant && msg.Time.Completed == 0 && msg.Error == nil {
		sess.streaming = true
	}
	s.mu.Unlock()
	s.notify()
}

// HandlePartUpdated upserts by part id, preserving the part's first-seen
// position within its message.
func (s *MessageStore) HandlePartUpdated(part types.Part) {
	if part.ID == "" || part.MessageID == "" || part.SessionID == "" {
		s.log.Warn("part update missing ids", logging.F("part_id", part.ID), logging.F("message_id", part.MessageID))
		return
	}
	s.mu.Lock()
	sess := s.session(part.SessionID)
	msg, ok := sess.byID[part.MessageID]
	if !ok {
		// Part for a message we have not seen; synthesize the shell so the
		// part is not lost. The full message arrives on its own event.
		msg = &messageState{
			info: types.Message{ID: part.MessageID, SessionID: part.SessionID, Role: types.RoleAssistant},
			byID: map[string]*types.Part{},
		}
		sess.byID[part.MessageID] = msg
		sess.order = append(sess.order, msg)
	}
	if existing, ok := msg.byID[part.ID]; ok {
		*existing = part
	} else {
		stored := part
		msg.byID[part.ID] = &stored
		msg.parts = append(msg.parts, &stored)
	}
	sess.streaming = true
	s.mu.Unlock()
	s.notify()
}

// HandlePartDelta appends a text fragment to an already-created part. A
// delta for an unknown part is dropped; the initial part snapshot is
// assumed to precede its deltas.
func (s *MessageStore) HandlePartDelta(sessionID, messageID, partID, text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		s.dropDelta(sessionID, messageID, partID, "unknown session")
		return
	}
	msg, ok := sess.byID[messageID]
	if !ok {
		s.mu.Unlock()
		s.dropDelta(sessionID, messageID, partID, "unknown message")
		return
	}
	part, ok := msg.byID[partID]
	if !ok {
		s.mu.Unlock()
		s.dropDelta(sessionID, messageID, partID, "unknown part")
		return
	}
	part.Text += text
	sess.streaming = true
	s.mu.Unlock()
	s.notify()
}

func (s *MessageStore) dropDelta(sessionID, messageID, partID, reason string) {
	s.log.Warn("part delta dropped",
		logging.F("reason", reason),
		logging.F("session_id", sessionID),
		logging.F("message_id", messageID),
		logging.F("part_id", partID),
	)
}

func (s *MessageStore) HandlePartRemoved(sessionID, messageID, partID string) {
	s.mu.Lock()
	removed := false
	if sess, ok := s.sessions[sessionID]; ok {
		if msg, ok := sess.byID[messageID]; ok {
			if _, ok := msg.byID[partID]; ok {
				delete(msg.byID, partID)
				for i, p := range msg.parts {
					if p.ID == partID {
						msg.parts = append(msg.parts[:i], msg.parts[i+1:]...)
						break
					}
				}
				removed = true
			}
		}
	}
	s.mu.Unlock()
	if removed {
		s.notify()
	}
}

// HandleSessionIdle clears the streaming flag.
func (s *MessageStore) HandleSessionIdle(sessionID string) {
	s.mu.Lock()
	changed := false
	if sess, ok := s.sessions[sessionID]; ok {
		if sess.streaming || sess.lastError != nil {
			changed = true
		}
		sess.streaming = false
		sess.lastError = nil
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// HandleSessionError clears the streaming flag but keeps whatever partial
// output already arrived.
func (s *MessageStore) HandleSessionError(sessionID string, errInfo *types.MessageError) {
	s.mu.Lock()
	sess := s.session(sessionID)
	sess.streaming = false
	sess.lastError = errInfo
	s.mu.Unlock()
	s.notify()
}

// SessionState returns a deep-copied snapshot for one session; the caller
// may hold it across mutations.
func (s *MessageStore) SessionState(sessionID string) SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return SessionSnapshot{}
	}
	snap := SessionSnapshot{
		Messages:  make([]MessageSnapshot, 0, len(sess.order)),
		Streaming: sess.streaming,
	}
	if sess.lastError != nil {
		errCopy := *sess.lastError
		snap.LastError = &errCopy
	}
	for _, msg := range sess.order {
		ms := MessageSnapshot{Info: msg.info, Parts: make([]types.Part, 0, len(msg.parts))}
		for _, part := range msg.parts {
			ms.Parts = append(ms.Parts, *part)
		}
		snap.Messages = append(snap.Messages, ms)
	}
	return snap
}

func (s *MessageStore) Streaming(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	return ok && sess.streaming
}

func (s *MessageStore) session(id string) *sessionState {
	sess, ok := s.sessions[id]
	if !ok {
		sess = &sessionState{byID: map[string]*messageState{}}
		s.sessions[id] = sess
	}
	return sess
}
