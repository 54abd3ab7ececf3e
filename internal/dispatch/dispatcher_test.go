package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"deck/internal/activity"
	"deck/internal/client"
	"deck/internal/logging"
	"deck/internal/notify"
	"deck/internal/state"
	"deck/internal/types"
)

type fakePuller struct {
	statuses    map[string]types.SessionActivity
	permissions []types.PendingRequest
	questions   []types.PendingRequest
	sessions    []types.Session
	fail        bool
}

func (p *fakePuller) SessionStatus(context.Context) (map[string]types.SessionActivity, error) {
	if p.fail {
		return nil, errors.New("down")
	}
	return p.statuses, nil
}

func (p *fakePuller) PendingPermissions(context.Context) ([]types.PendingRequest, error) {
	if p.fail {
		return nil, errors.New("down")
	}
	return p.permissions, nil
}

func (p *fakePuller) PendingQuestions(context.Context) ([]types.PendingRequest, error) {
	if p.fail {
		return nil, errors.New("down")
	}
	return p.questions, nil
}

func (p *fakePuller) ListSessions(context.Context) ([]types.Session, error) {
	if p.fail {
		return nil, errors.New("down")
	}
	return p.sessions, nil
}

type harness struct {
	dispatcher *Dispatcher
	handlers   client.EventHandlers
	tracker    *activity.Tracker
	messages   *state.MessageStore
	notifier   *notify.Notifier
	prompts    []types.PendingRequest
	pull       *fakePuller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		tracker:  activity.NewTracker(nil),
		messages: state.NewMessageStore(nil),
		notifier: notify.NewNotifier(nil, nil, notify.Options{}),
		pull:     &fakePuller{},
	}
	h.dispatcher = NewDispatcher(Config{
		Log:      logging.Nop(),
		Pull:     h.pull,
		Messages: h.messages,
		Children: state.NewChildSessionTracker(),
		Tracker:  h.tracker,
		Notifier: h.notifier,
		OnPromptRequest: func(req types.PendingRequest) {
			h.prompts = append(h.prompts, req)
		},
	})
	h.handlers = h.dispatcher.Handlers()
	return h
}

func session(id, parentID, title string) types.Session {
	return types.Session{ID: id, ParentID: parentID, Title: title}
}

func permission(id, sessionID string) types.PendingRequest {
	return types.PendingRequest{
		ID:        id,
		SessionID: sessionID,
		Kind:      types.RequestPermission,
		AskedAt:   time.Now(),
	}
}

func TestDispatcherPromptBeforeSessionCreated(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.SetCurrentSession("s1")

	h.handlers.OnPermissionAsked(permission("r1", "s1"))

	// The prompt is held back until the session materializes, but the
	// activity indicator reflects it immediately.
	if len(h.prompts) != 0 {
		t.Fatalf("prompt delivered before session.created")
	}
	if h.tracker.Status("s1") != types.SessionBusy {
		t.Fatalf("expected s1 busy while request pending, got %q", h.tracker.Status("s1"))
	}

	h.handlers.OnSessionCreated(session("s1", "", "build"))
	if len(h.prompts) != 1 || h.prompts[0].ID != "r1" {
		t.Fatalf("expected exactly one replayed prompt, got %+v", h.prompts)
	}

	// A duplicate creation event must not replay again.
	h.handlers.OnSessionCreated(session("s1", "", "build"))
	if len(h.prompts) != 1 {
		t.Fatalf("duplicate session.created replayed the prompt")
	}
}

func TestDispatcherPromptForKnownSessionImmediate(t *testing.T) {
	h := newHarness(t)
	h.handlers.OnSessionCreated(session("s1", "", "build"))

	h.handlers.OnPermissionAsked(permission("r1", "s1"))
	if len(h.prompts) != 1 {
		t.Fatalf("expected immediate delivery for known session")
	}

	h.handlers.OnPermissionReplied("r1")
	if h.tracker.PendingCount() != 0 {
		t.Fatalf("reply did not clear pending request")
	}
	if h.tracker.Status("s1") != types.SessionIdle {
		t.Fatalf("expected deferred idle applied after last reply")
	}
}

func TestDispatcherNotificationSuppressionForActiveView(t *testing.T) {
	h := newHarness(t)
	h.handlers.OnSessionCreated(session("s1", "", "build"))
	h.handlers.OnSessionCreated(session("s2", "", "deploy"))
	h.dispatcher.SetCurrentSession("s1")

	h.handlers.OnPermissionAsked(permission("r1", "s1"))
	if len(h.notifier.History()) != 0 {
		t.Fatalf("in-view request must not notify")
	}

	h.handlers.OnPermissionAsked(permission("r2", "s2"))
	history := h.notifier.History()
	if len(history) != 1 || history[0].Type != types.NotificationPermission || history[0].SessionID != "s2" {
		t.Fatalf("expected one permission notification for s2, got %+v", history)
	}
}

func TestDispatcherChildActivityAttributedToParentView(t *testing.T) {
	h := newHarness(t)
	h.handlers.OnSessionCreated(session("s1", "", "build"))
	h.handlers.OnSessionCreated(session("s2", "s1", "subtask"))
	h.dispatcher.SetCurrentSession("s1")

	h.handlers.OnSessionError("s2", &types.MessageError{Name: "ProviderError", Message: "boom"})
	if len(h.notifier.History()) != 0 {
		t.Fatalf("child error inside the active view must be suppressed")
	}

	h.dispatcher.SetCurrentSession("s3")
	h.handlers.OnSessionError("s2", &types.MessageError{Name: "ProviderError", Message: "boom"})
	history := h.notifier.History()
	if len(history) != 1 || history[0].Type != types.NotificationError {
		t.Fatalf("expected one error notification, got %+v", history)
	}
}

func TestDispatcherSessionErrorNotifications(t *testing.T) {
	h := newHarness(t)
	h.handlers.OnSessionCreated(session("s1", "", "build"))

	h.handlers.OnSessionError("s1", &types.MessageError{Name: "MessageAbortedError", Message: "stopped"})
	if len(h.notifier.History()) != 0 {
		t.Fatalf("aborted error must not notify")
	}

	h.handlers.OnSessionError("s1", &types.MessageError{Name: "APIError", Message: "rate limited"})
	history := h.notifier.History()
	if len(history) != 1 || history[0].Title != "APIError" || history[0].Body != "rate limited" {
		t.Fatalf("expected one error notification, got %+v", history)
	}
	if h.tracker.Status("s1") != types.SessionIdle {
		t.Fatalf("error must settle the session to idle")
	}
}

func TestDispatcherSessionIdleNotifiesOutOfView(t *testing.T) {
	h := newHarness(t)
	h.handlers.OnSessionCreated(session("s1", "", "build"))
	h.handlers.OnSessionCreated(session("s2", "s1", "subtask"))

	h.handlers.OnSessionIdle("s1")
	history := h.notifier.History()
	if len(history) != 1 || history[0].Type != types.NotificationDone || history[0].Body != "build" {
		t.Fatalf("expected done notification with session title, got %+v", history)
	}

	// Sub-agent completion never gets its own notification.
	h.handlers.OnSessionIdle("s2")
	if len(h.notifier.History()) != 1 {
		t.Fatalf("child idle must not notify")
	}
}

func TestDispatcherResyncSeedsStores(t *testing.T) {
	h := newHarness(t)
	h.pull.statuses = map[string]types.SessionActivity{
		"s1": types.SessionBusy,
		"s2": types.SessionIdle,
	}
	h.pull.permissions = []types.PendingRequest{permission("r1", "s9")}
	h.pull.sessions = []types.Session{session("s1", "", "build")}

	h.dispatcher.Resync(context.Background())

	if h.tracker.Status("s1") != types.SessionBusy {
		t.Fatalf("expected s1 busy after resync")
	}
	// A pending request for a never-announced session still forces a busy
	// indicator.
	if h.tracker.Status("s9") != types.SessionBusy {
		t.Fatalf("expected synthesized busy for s9, got %q", h.tracker.Status("s9"))
	}
	if got := h.dispatcher.Sessions(); len(got) != 1 || got[0].ID != "s1" {
		t.Fatalf("unexpected session list: %+v", got)
	}

	// The pulled request replays once its session materializes in view.
	h.dispatcher.SetCurrentSession("s9")
	h.handlers.OnSessionCreated(session("s9", "", "late"))
	if len(h.prompts) != 1 || h.prompts[0].ID != "r1" {
		t.Fatalf("expected pulled request replayed, got %+v", h.prompts)
	}
}

func TestDispatcherResyncDegradesOnPullFailure(t *testing.T) {
	h := newHarness(t)
	h.handlers.OnSessionCreated(session("s1", "", "build"))
	h.handlers.OnSessionStatus("s1", types.SessionBusy)
	h.pull.fail = true

	h.dispatcher.Resync(context.Background())

	if h.tracker.BusyCount() != 0 {
		t.Fatalf("failed pull must reset to the empty snapshot")
	}
}

func TestDispatcherHandlerPanicIsolated(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.reconciler = activity.NewReconciler(nil, func(types.PendingRequest) {
		panic("ui handler blew up")
	})
	h.handlers.OnSessionCreated(session("s1", "", "build"))

	h.handlers.OnPermissionAsked(permission("r1", "s1"))

	// The panic must not escape, and the mutation preceding delivery
	// still lands.
	if h.tracker.PendingCount() != 1 {
		t.Fatalf("pending request lost to handler panic")
	}
}

func TestDispatcherSessionsOrdering(t *testing.T) {
	h := newHarness(t)
	s1 := session("s1", "", "old")
	s1.Time.Created = 100
	s2 := session("s2", "", "new")
	s2.Time.Created = 200
	child := session("s3", "s1", "sub")
	child.Time.Created = 300
	h.handlers.OnSessionCreated(s1)
	h.handlers.OnSessionCreated(s2)
	h.handlers.OnSessionCreated(child)

	got := h.dispatcher.Sessions()
	if len(got) != 2 || got[0].ID != "s2" || got[1].ID != "s1" {
		t.Fatalf("expected top-level sessions newest first, got %+v", got)
	}
}
