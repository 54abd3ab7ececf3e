package app

import (
	"context"
	"time"

	tea "charm.land/bubbletea/v2"

	"deck/internal/activity"
	"deck/internal/dispatch"
	"deck/internal/logging"
	"deck/internal/notify"
	"deck/internal/state"
)

// SessionAPI is the slice of the server client the UI needs for outbound
// actions. The full client satisfies it.
type SessionAPI interface {
	SendMessage(ctx context.Context, sessionID, text string) error
	ReplyPermission(ctx context.Context, requestID, response string) error
	AnswerQuestion(ctx context.Context, requestID, answer string) error
	AbortSession(ctx context.Context, sessionID string) error
}

// Deps bundles the shared state the UI reads. All of it is owned and
// mutated by the dispatch layer; the model only takes snapshots.
type Deps struct {
	Log        logging.Logger
	API        SessionAPI
	Dispatcher *dispatch.Dispatcher
	Messages   *state.MessageStore
	Tracker    *activity.Tracker
	Notifier   *notify.Notifier
	Prompts    *promptInbox
	// CharDelay paces the streaming text reveal; zero means the default.
	CharDelay time.Duration
}

// NewPromptInbox returns the prompt queue to hand to the dispatcher's
// OnPromptRequest callback before the program starts.
func NewPromptInbox() *promptInbox {
	return newPromptInbox()
}

func Run(deps Deps) error {
	model := NewModel(deps)
	p := tea.NewProgram(model)
	_, err := p.Run()
	return err
}
