package dispatch

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"deck/internal/activity"
	"deck/internal/client"
	"deck/internal/logging"
	"deck/internal/notify"
	"deck/internal/state"
	"deck/internal/types"
)

// Puller is the pull-based refresh surface used for full resynchronization
// at startup and after reconnect.
type Puller interface {
	SessionStatus(ctx context.Context) (map[string]types.SessionActivity, error)
	PendingPermissions(ctx context.Context) ([]types.PendingRequest, error)
	PendingQuestions(ctx context.Context) ([]types.PendingRequest, error)
	ListSessions(ctx context.Context) ([]types.Session, error)
}

type Config struct {
	Log      logging.Logger
	Pull     Puller
	Messages *state.MessageStore
	Children *state.ChildSessionTracker
	Tracker  *activity.Tracker
	Notifier *notify.Notifier
	// OnPromptRequest receives permission/question prompts routed to the
	// active view, possibly replayed after a session-creation race.
	OnPromptRequest func(types.PendingRequest)
}

// Dispatcher is the single writer for every store: it translates transport
// callbacks into store mutations, reconciles prompt/session races, decides
// which events become notifications, and performs the full resync pull on
// reconnect. Each handler is individually fault-isolated so one bad event
// cannot halt processing for other sessions.
type Dispatcher struct {
	log        logging.Logger
	pull       Puller
	messages   *state.MessageStore
	children   *state.ChildSessionTracker
	tracker    *activity.Tracker
	reconciler *activity.Reconciler
	notifier   *notify.Notifier

	mu       sync.Mutex
	sessions map[string]types.Session
}

func NewDispatcher(cfg Config) *Dispatcher {
	log := cfg.Log
	if log == nil {
		log = logging.Nop()
	}
	d := &Dispatcher{
		log:      log,
		pull:     cfg.Pull,
		messages: cfg.Messages,
		children: cfg.Children,
		tracker:  cfg.Tracker,
		notifier: cfg.Notifier,
		sessions: map[string]types.Session{},
	}
	d.reconciler = activity.NewReconciler(log, cfg.OnPromptRequest)
	return d
}

// Handlers returns the named-callback table wired into the transport.
func (d *Dispatcher) Handlers() client.EventHandlers {
	return client.EventHandlers{
		OnMessageUpdated: func(msg types.Message) {
			d.safely("message.updated", func() { d.messages.HandleMessageUpdated(msg) })
		},
		OnPartUpdated: func(part types.Part) {
			d.safely("part.updated", func() { d.messages.HandlePartUpdated(part) })
		},
		OnPartDelta: func(sessionID, messageID, partID, text string) {
			d.safely("part.delta", func() { d.messages.HandlePartDelta(sessionID, messageID, partID, text) })
		},
		OnPartRemoved: func(sessionID, messageID, partID string) {
			d.safely("part.removed", func() { d.messages.HandlePartRemoved(sessionID, messageID, partID) })
		},
		OnSessionCreated: func(session types.Session) {
			d.safely("session.created", func() { d.handleSessionCreated(session) })
		},
		OnSessionUpdated: func(session types.Session) {
			d.safely("session.updated", func() { d.rememberSession(session) })
		},
		OnSessionIdle: func(sessionID string) {
			d.safely("session.idle", func() { d.handleSessionIdle(sessionID) })
		},
		OnSessionError: func(sessionID string, errInfo *types.MessageError) {
			d.safely("session.error", func() { d.handleSessionError(sessionID, errInfo) })
		},
		OnSessionStatus: func(sessionID string, status types.SessionActivity) {
			d.safely("session.status", func() { d.tracker.UpdateStatus(sessionID, status) })
		},
		OnPermissionAsked: func(req types.PendingRequest) {
			d.safely("permission.asked", func() { d.handleRequestAsked(req) })
		},
		OnPermissionReplied: func(requestID string) {
			d.safely("permission.replied", func() { d.handleRequestResolved(requestID) })
		},
		OnQuestionAsked: func(req types.PendingRequest) {
			d.safely("question.asked", func() { d.handleRequestAsked(req) })
		},
		OnQuestionReplied: func(requestID string) {
			d.safely("question.replied", func() { d.handleRequestResolved(requestID) })
		},
		OnQuestionRejected: func(requestID string) {
			d.safely("question.rejected", func() { d.handleRequestResolved(requestID) })
		},
		OnReconnected: func(reason client.ReconnectReason) {
			d.safely("reconnected", func() { d.handleReconnected(reason) })
		},
	}
}

// safely runs one ingestion handler with panic isolation; a malformed
// event is logged and dropped, never propagated to the stream loop.
func (d *Dispatcher) safely(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("event handler panic", logging.F("handler", name), logging.F("panic", r))
		}
	}()
	fn()
}

func (d *Dispatcher) handleSessionCreated(session types.Session) {
	d.rememberSession(session)
	d.reconciler.SessionCreated(session.ID, d.inActiveView(session.ID))
}

func (d *Dispatcher) rememberSession(session types.Session) {
	if strings.TrimSpace(session.ID) == "" {
		d.log.Warn("session event missing id")
		return
	}
	d.children.RegisterChildSession(session)
	d.mu.Lock()
	d.sessions[session.ID] = session
	d.mu.Unlock()
}

func (d *Dispatcher) handleSessionIdle(sessionID string) {
	d.messages.HandleSessionIdle(sessionID)
	d.tracker.UpdateStatus(sessionID, types.SessionIdle)
	d.children.MarkIdle(sessionID)

	meta, known := d.SessionMeta(sessionID)
	if meta.ParentID != "" {
		// Sub-agent completion surfaces through the parent's summary, not
		// as its own notification.
		return
	}
	if d.inActiveView(sessionID) {
		return
	}
	title := meta.Title
	if !known || title == "" {
		title = sessionID
	}
	d.notifier.Push(time.Time{}, types.NotificationDone, "Agent finished", title, sessionID, meta.Directory)
}

func (d *Dispatcher) handleSessionError(sessionID string, errInfo *types.MessageError) {
	d.messages.HandleSessionError(sessionID, errInfo)
	d.tracker.UpdateStatus(sessionID, types.SessionIdle)
	d.children.MarkError(sessionID)

	if errInfo.Aborted() {
		// User-initiated cancellation; not noteworthy.
		return
	}
	if d.inActiveView(sessionID) {
		return
	}
	meta, _ := d.SessionMeta(sessionID)
	title := "Agent error"
	body := ""
	if errInfo != nil {
		title = errInfo.Name
		body = errInfo.Message
	}
	d.notifier.Push(time.Time{}, types.NotificationError, title, body, sessionID, meta.Directory)
}

func (d *Dispatcher) handleRequestAsked(req types.PendingRequest) {
	d.tracker.AddPendingRequest(req)
	d.reconciler.Offer(req)

	if d.inActiveView(req.SessionID) {
		return
	}
	meta, _ := d.SessionMeta(req.SessionID)
	typ := types.NotificationPermission
	title := "Permission needed"
	if req.Kind == types.RequestQuestion {
		typ = types.NotificationQuestion
		title = "Question from agent"
	}
	d.notifier.Push(time.Time{}, typ, title, req.Description, req.SessionID, meta.Directory)
}

func (d *Dispatcher) handleRequestResolved(requestID string) {
	d.tracker.ResolvePendingRequest(requestID)
	d.reconciler.Withdraw(requestID)
}

func (d *Dispatcher) handleReconnected(reason client.ReconnectReason) {
	d.log.Info("resynchronizing", logging.F("reason", string(reason)))
	if reason == client.ReconnectServerSwitch {
		// A different server instance knows nothing about our cached
		// session-creation state.
		d.reconciler.Reset()
	}
	d.Resync(context.Background())
}

// Resync performs the full pull-based refresh: statuses, pending requests
// and the session list. Each source is independently fallible and
// defaults to empty; a failed pull degrades indicators, not the
// conversation stream.
func (d *Dispatcher) Resync(ctx context.Context) {
	statuses, err := d.pull.SessionStatus(ctx)
	if err != nil {
		d.log.Warn("status pull failed", logging.F("error", err))
		statuses = map[string]types.SessionActivity{}
	}
	permissions, err := d.pull.PendingPermissions(ctx)
	if err != nil {
		d.log.Warn("permissions pull failed", logging.F("error", err))
		permissions = nil
	}
	questions, err := d.pull.PendingQuestions(ctx)
	if err != nil {
		d.log.Warn("questions pull failed", logging.F("error", err))
		questions = nil
	}
	sessions, err := d.pull.ListSessions(ctx)
	if err != nil {
		d.log.Warn("session list pull failed", logging.F("error", err))
		sessions = nil
	}

	for _, session := range sessions {
		d.rememberSession(session)
	}
	d.tracker.Initialize(statuses)
	d.tracker.InitializePendingRequests(permissions, questions)

	// Requests fetched by pull may reference sessions the stream has not
	// announced yet; route them through the reconciler so the prompt
	// affordance appears once (and only once) the session materializes.
	for _, req := range permissions {
		d.reconciler.Offer(req)
	}
	for _, req := range questions {
		d.reconciler.Offer(req)
	}
}

// SetCurrentSession records which top-level conversation the user is
// viewing; notifications for it (and its children) are suppressed.
func (d *Dispatcher) SetCurrentSession(sessionID string) {
	d.messages.SetCurrentSession(sessionID)
}

func (d *Dispatcher) inActiveView(sessionID string) bool {
	current := d.messages.CurrentSessionID()
	if current == "" {
		return false
	}
	return d.children.BelongsToSession(sessionID, current)
}

// SessionMeta returns the last-known metadata for one session.
func (d *Dispatcher) SessionMeta(sessionID string) (types.Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	session, ok := d.sessions[sessionID]
	return session, ok
}

// Sessions returns top-level sessions, most recently created first.
func (d *Dispatcher) Sessions() []types.Session {
	d.mu.Lock()
	out := make([]types.Session, 0, len(d.sessions))
	for _, session := range d.sessions {
		if session.ParentID != "" {
			continue
		}
		out = append(out, session)
	}
	d.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time.Created == out[j].Time.Created {
			return out[i].ID < out[j].ID
		}
		return out[i].Time.Created > out[j].Time.Created
	})
	return out
}
