package app

import (
	"context"
	"fmt"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"deck/internal/activity"
	"deck/internal/dispatch"
	"deck/internal/notify"
	"deck/internal/state"
	"deck/internal/types"
)

type stubPuller struct{}

func (stubPuller) SessionStatus(context.Context) (map[string]types.SessionActivity, error) {
	return nil, nil
}

func (stubPuller) PendingPermissions(context.Context) ([]types.PendingRequest, error) {
	return nil, nil
}

func (stubPuller) PendingQuestions(context.Context) ([]types.PendingRequest, error) {
	return nil, nil
}

func (stubPuller) ListSessions(context.Context) ([]types.Session, error) {
	return nil, nil
}

func newTestModel(t *testing.T) *Model {
	t.Helper()
	messages := state.NewMessageStore(nil)
	tracker := activity.NewTracker(nil)
	notifier := notify.NewNotifier(nil, nil, notify.Options{})
	prompts := newPromptInbox()
	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		Pull:            stubPuller{},
		Messages:        messages,
		Children:        state.NewChildSessionTracker(),
		Tracker:         tracker,
		Notifier:        notifier,
		OnPromptRequest: prompts.Deliver,
	})
	return NewModel(Deps{
		Dispatcher: dispatcher,
		Messages:   messages,
		Tracker:    tracker,
		Notifier:   notifier,
		Prompts:    prompts,
	})
}

func TestModelViewAltScreen(t *testing.T) {
	m := newTestModel(t)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	model, ok := updated.(*Model)
	if !ok {
		t.Fatalf("expected *Model from Update, got %T", updated)
	}

	view := model.View()
	if !view.AltScreen {
		t.Fatalf("expected alt screen enabled")
	}
	stringer, ok := view.Content.(fmt.Stringer)
	if !ok {
		t.Fatalf("expected stringer view content, got %T", view.Content)
	}
	content := stringer.String()
	if !strings.Contains(content, "deck") {
		t.Fatalf("expected header in view content, got %q", content)
	}
}
