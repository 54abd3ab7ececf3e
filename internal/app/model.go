package app

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"deck/internal/logging"
	"deck/internal/state"
	"deck/internal/stream"
	"deck/internal/types"
)

const (
	minViewportWidth = 20
	minContentHeight = 6
	chromeLines      = 3 // header, input, status
	minListWidth     = 24
	maxListWidth     = 40
	sidebarMinTotal  = 60 // below this the sidebar collapses
)

type uiMode int

const (
	uiModeChat uiMode = iota
	uiModeHistory
)

type Model struct {
	deps Deps
	log  logging.Logger

	viewport viewport.Model
	input    textinput.Model
	loader   spinner.Model
	smoother *stream.Smoother
	frames   stream.FrameScheduler
	dirty    *atomic.Bool

	width    int
	height   int
	mode     uiMode
	sessions []types.Session
	selected int
	follow   bool

	activePrompt *types.PendingRequest
	status       string
}

func NewModel(deps Deps) *Model {
	log := deps.Log
	if log == nil {
		log = logging.Nop()
	}
	vp := viewport.New(viewport.WithWidth(minViewportWidth), viewport.WithHeight(minContentHeight))
	vp.SetContent("No sessions.")

	input := textinput.New()
	input.Placeholder = "Message the agent"
	input.Focus()

	loader := spinner.New()
	loader.Spinner = spinner.Line

	dirty := &atomic.Bool{}
	dirty.Store(true)
	markDirty := func() { dirty.Store(true) }
	deps.Messages.Subscribe(markDirty)
	deps.Tracker.Subscribe(markDirty)
	deps.Notifier.Subscribe(markDirty)

	return &Model{
		deps:     deps,
		log:      log,
		viewport: vp,
		input:    input,
		loader:   loader,
		smoother: stream.NewSmoother(deps.CharDelay),
		frames:   stream.NewDefaultFrameScheduler(),
		dirty:    dirty,
		follow:   true,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), resyncCmd(m.deps.Dispatcher.Resync))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.SetWidth(max(minViewportWidth, msg.Width-m.sidebarWidth()))
		m.viewport.SetHeight(max(1, msg.Height-chromeLines))
		m.dirty.Store(true)
		return m, nil
	case tickMsg:
		return m.handleTick(time.Time(msg))
	case tea.KeyPressMsg:
		return m.handleKey(msg)
	case sendResultMsg:
		if msg.err != nil {
			m.status = "send failed: " + msg.err.Error()
		} else {
			m.status = "sent"
		}
		return m, nil
	case replyResultMsg:
		if msg.err != nil {
			m.status = "reply failed: " + msg.err.Error()
		} else {
			m.status = "replied"
		}
		return m, nil
	case abortResultMsg:
		if msg.err != nil {
			m.status = "abort failed: " + msg.err.Error()
		} else {
			m.status = "aborted"
		}
		return m, nil
	case resyncDoneMsg:
		m.status = "synchronized"
		m.dirty.Store(true)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleTick(now time.Time) (tea.Model, tea.Cmd) {
	m.deps.Notifier.Sweep(now)
	m.refreshSessions()
	m.collectPrompt()

	if m.deps.Tracker.BusyCount() > 0 {
		m.loader, _ = m.loader.Update(spinner.TickMsg{Time: now, ID: m.loader.ID()})
	}

	if m.dirty.Swap(false) {
		m.frames.Request(now)
	}
	current := m.currentSessionID()
	snapshot := m.deps.Messages.SessionState(current)
	tailText, hasTail := tailSourceText(snapshot)
	if hasTail {
		m.smoother.SetSource(tailText, snapshot.Streaming, now)
	}
	display, animating := m.smoother.Advance(now)

	if m.frames.ShouldRender(now) || animating {
		m.rebuildContent(snapshot, display, hasTail)
		m.frames.MarkRendered(now)
	}
	return m, tickCmd()
}

// tailSourceText returns the raw text of the part the smoother paces.
func tailSourceText(snapshot state.SessionSnapshot) (string, bool) {
	mi, pi := streamTailLocation(snapshot)
	if mi < 0 {
		return "", false
	}
	return snapshot.Messages[mi].Parts[pi].Text, true
}

func (m *Model) rebuildContent(snapshot state.SessionSnapshot, streamTail string, hasTail bool) {
	if m.mode == uiModeHistory {
		m.viewport.SetContent(m.renderHistory())
		return
	}
	pending := m.deps.Tracker.PendingForSession(m.currentSessionID())
	content := renderTranscript(snapshot, transcriptContext{
		Pending:    pending,
		StreamTail: streamTail,
		HasTail:    hasTail,
	}, m.viewport.Width())
	m.viewport.SetContent(content)
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) refreshSessions() {
	sessions := m.deps.Dispatcher.Sessions()
	previous := m.currentSessionID()
	m.sessions = sessions
	if len(sessions) == 0 {
		m.selected = 0
		return
	}
	if m.selected >= len(sessions) {
		m.selected = len(sessions) - 1
	}
	// Keep the selection pinned to the same session when the list reorders.
	if previous != "" {
		for i, session := range sessions {
			if session.ID == previous {
				m.selected = i
				break
			}
		}
	}
	if current := m.currentSessionID(); current != previous {
		m.deps.Dispatcher.SetCurrentSession(current)
		m.smoother = stream.NewSmoother(m.deps.CharDelay)
		m.dirty.Store(true)
	}
}

func (m *Model) collectPrompt() {
	if m.activePrompt != nil {
		if !m.promptStillPending(*m.activePrompt) {
			m.clearPrompt()
		}
		return
	}
	req, ok := m.deps.Prompts.Next()
	if !ok {
		return
	}
	if !m.promptStillPending(req) {
		return
	}
	m.activePrompt = &req
	m.dirty.Store(true)
	if req.Kind == types.RequestQuestion {
		m.input.Placeholder = "Answer the question"
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *Model) promptStillPending(req types.PendingRequest) bool {
	for _, pending := range m.deps.Tracker.PendingForSession(req.SessionID) {
		if pending.ID == req.ID {
			return true
		}
	}
	return false
}

func (m *Model) clearPrompt() {
	m.activePrompt = nil
	m.input.Placeholder = "Message the agent"
	m.input.Focus()
	m.dirty.Store(true)
}

func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "ctrl+c":
		return m, tea.Quit
	case "ctrl+n":
		m.selectSession(m.selected + 1)
		return m, nil
	case "ctrl+p":
		m.selectSession(m.selected - 1)
		return m, nil
	case "ctrl+h":
		if m.mode == uiModeHistory {
			m.mode = uiModeChat
		} else {
			m.mode = uiModeHistory
		}
		m.dirty.Store(true)
		return m, nil
	case "ctrl+x":
		if id := m.currentSessionID(); id != "" {
			m.status = "aborting…"
			return m, abortSessionCmd(m.deps.API, id)
		}
		return m, nil
	case "ctrl+y":
		m.copyLastReply()
		return m, nil
	case "pgup":
		m.follow = false
		m.viewport.ScrollUp(3)
		return m, nil
	case "pgdown":
		m.viewport.ScrollDown(3)
		if m.viewport.AtBottom() {
			m.follow = true
		}
		return m, nil
	}

	if m.mode == uiModeHistory {
		return m.handleHistoryKey(key)
	}
	if m.activePrompt != nil {
		return m.handlePromptKey(key, msg)
	}

	switch key {
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		id := m.currentSessionID()
		if text == "" || id == "" {
			return m, nil
		}
		m.input.SetValue("")
		m.status = "sending…"
		return m, sendMessageCmd(m.deps.API, id, text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handlePromptKey(key string, msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	req := *m.activePrompt
	if req.Kind == types.RequestPermission {
		switch key {
		case "y":
			m.clearPrompt()
			m.status = "approving…"
			return m, replyPermissionCmd(m.deps.API, req.ID, "approve")
		case "d":
			m.clearPrompt()
			m.status = "denying…"
			return m, replyPermissionCmd(m.deps.API, req.ID, "deny")
		case "esc":
			// Leave the request pending; it stays visible in the transcript.
			m.clearPrompt()
			return m, nil
		}
		return m, nil
	}

	switch key {
	case "enter":
		answer := strings.TrimSpace(m.input.Value())
		if answer == "" {
			return m, nil
		}
		m.input.SetValue("")
		m.clearPrompt()
		m.status = "answering…"
		return m, answerQuestionCmd(m.deps.API, req.ID, answer)
	case "esc":
		m.clearPrompt()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleHistoryKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "esc":
		m.mode = uiModeChat
		m.dirty.Store(true)
	case "r":
		for _, entry := range m.deps.Notifier.History() {
			if !entry.Read {
				m.deps.Notifier.MarkRead(entry.ID)
				break
			}
		}
	case "C":
		m.deps.Notifier.ClearAll()
	}
	return m, nil
}

func (m *Model) selectSession(index int) {
	if len(m.sessions) == 0 {
		return
	}
	if index < 0 {
		index = len(m.sessions) - 1
	}
	if index >= len(m.sessions) {
		index = 0
	}
	if index == m.selected {
		return
	}
	m.selected = index
	m.deps.Dispatcher.SetCurrentSession(m.currentSessionID())
	m.smoother = stream.NewSmoother(m.deps.CharDelay)
	m.follow = true
	m.dirty.Store(true)
}

func (m *Model) currentSessionID() string {
	if m.selected < 0 || m.selected >= len(m.sessions) {
		return ""
	}
	return m.sessions[m.selected].ID
}

func (m *Model) copyLastReply() {
	snapshot := m.deps.Messages.SessionState(m.currentSessionID())
	for mi := len(snapshot.Messages) - 1; mi >= 0; mi-- {
		msg := snapshot.Messages[mi]
		if msg.Info.Role != types.RoleAssistant {
			continue
		}
		var parts []string
		for _, part := range msg.Parts {
			if part.Type == types.PartText && part.Text != "" {
				parts = append(parts, part.Text)
			}
		}
		if len(parts) == 0 {
			continue
		}
		if _, err := copyTextToClipboard(strings.Join(parts, "\n\n")); err != nil {
			m.status = "copy failed: " + err.Error()
		} else {
			m.status = "copied"
		}
		return
	}
	m.status = "nothing to copy"
}

func (m *Model) renderHistory() string {
	history := m.deps.Notifier.History()
	if len(history) == 0 {
		return metaStyle.Render("No notifications.")
	}
	width := max(1, m.viewport.Width()-2)
	var lines []string
	for _, entry := range history {
		title := entry.Title
		if entry.Body != "" {
			title += ": " + entry.Body
		}
		line := truncateToWidth(title, width)
		if entry.Read {
			lines = append(lines, historyTitleStyle.Render(line))
		} else {
			lines = append(lines, historyUnreadStyle.Render("* "+line))
		}
		meta := entry.CreatedAt.Format("15:04:05")
		if entry.Directory != "" {
			meta += "  " + entry.Directory
		}
		lines = append(lines, metaStyle.Render("  "+meta))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) View() tea.View {
	var view tea.View
	view.AltScreen = true
	view.SetContent(m.viewContent())
	return view
}

func (m *Model) viewContent() string {
	width := max(minViewportWidth, m.width)

	title := "deck"
	if session := m.currentSession(); session != nil && session.Title != "" {
		title += " · " + session.Title
	}
	header := headerStyle.Render(truncateToWidth(title, width))

	body := m.viewport.View()
	if sidebarWidth := m.sidebarWidth(); sidebarWidth > 0 {
		sidebar := m.renderSidebar(sidebarWidth-1, m.viewport.Height())
		divider := strings.TrimRight(strings.Repeat("│\n", max(1, m.viewport.Height())), "\n")
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, dividerStyle.Render(divider), body)
	}

	inputLine := inputPromptStyle.Render("> ") + m.input.View()

	status := m.statusLine(width)

	view := lipgloss.JoinVertical(lipgloss.Left, header, body, inputLine, status)

	overlay := toastOverlay(m.deps.Notifier.Toasts(), width)
	if len(overlay) > 0 {
		view = lipgloss.JoinVertical(lipgloss.Left, view, strings.Join(overlay, "\n"))
	}
	return view
}

// sidebarWidth returns the columns reserved for the session list,
// divider included; zero when the terminal is too narrow.
func (m *Model) sidebarWidth() int {
	if m.width < sidebarMinTotal {
		return 0
	}
	w := m.width / 4
	if w < minListWidth {
		w = minListWidth
	}
	if w > maxListWidth {
		w = maxListWidth
	}
	return w
}

func (m *Model) renderSidebar(width, height int) string {
	lines := make([]string, 0, max(1, height))
	for i, session := range m.sessions {
		marker := "  "
		switch m.deps.Tracker.Status(session.ID) {
		case types.SessionBusy:
			marker = sessionBusyStyle.Render("● ")
		case types.SessionRetrying:
			marker = sessionBusyStyle.Render("◌ ")
		}
		title := session.Title
		if title == "" {
			title = session.ID
		}
		line := truncateToWidth(title, max(1, width-2))
		if i == m.selected {
			lines = append(lines, marker+selectedStyle.Render(line))
		} else {
			lines = append(lines, marker+sessionStyle.Render(line))
		}
		if len(lines) >= height {
			break
		}
	}
	if len(lines) == 0 {
		lines = append(lines, metaStyle.Render("no sessions"))
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for i, line := range lines {
		lines[i] = lipgloss.PlaceHorizontal(width, lipgloss.Left, line)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) currentSession() *types.Session {
	if m.selected < 0 || m.selected >= len(m.sessions) {
		return nil
	}
	return &m.sessions[m.selected]
}

func (m *Model) statusLine(width int) string {
	var parts []string
	if busy := m.deps.Tracker.BusyCount(); busy > 0 {
		parts = append(parts, activityStyle.Render(m.loader.View()+" "+plural(busy, "session")+" busy"))
	}
	if pending := m.deps.Tracker.PendingCount(); pending > 0 {
		parts = append(parts, toastWarningStyle.Render(" "+plural(pending, "request")+" waiting "))
	}
	if unread := m.unreadCount(); unread > 0 {
		parts = append(parts, unreadBadgeStyle.Render(" "+plural(unread, "unread")+" "))
	}
	if m.status != "" {
		parts = append(parts, statusStyle.Render(m.status))
	}
	left := strings.Join(parts, " ")
	help := helpStyle.Render("ctrl+n/p sessions · ctrl+h history · ctrl+x abort · ctrl+c quit")
	line := left
	if line != "" {
		line += "  "
	}
	line += help
	return truncateToWidth(line, width)
}

func (m *Model) unreadCount() int {
	count := 0
	for _, entry := range m.deps.Notifier.History() {
		if !entry.Read {
			count++
		}
	}
	return count
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
