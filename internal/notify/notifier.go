package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"deck/internal/logging"
	"deck/internal/types"
)

const (
	defaultMaxToasts     = 3
	defaultMaxHistory    = 100
	defaultToastDuration = 5 * time.Second
	toastExitDelay       = 200 * time.Millisecond
)

// HistoryStore persists the capped notification history. Failures are
// swallowed by the Notifier; history degrades to in-memory only.
type HistoryStore interface {
	Load(ctx context.Context) ([]types.NotificationEntry, error)
	Save(ctx context.Context, entries []types.NotificationEntry) error
}

type Options struct {
	MaxToasts     int
	MaxHistory    int
	ToastDuration time.Duration
}

// ToastSnapshot is what the presentation layer sees: the entry plus the
// exiting flag used to sequence the exit animation.
type ToastSnapshot struct {
	Entry   types.NotificationEntry
	Exiting bool
}

type toast struct {
	entry     types.NotificationEntry
	exiting   bool
	expiresAt time.Time     // zero while paused or exiting
	remaining time.Duration // set while paused
	removeAt  time.Time     // set once exiting
}

// Notifier converts reconciled events into a persisted notification
// history and a capped, auto-expiring toast queue. It performs no
// session-identity filtering; the dispatch layer decides what to push.
// Expiry is deadline-based and driven by Sweep, so evicting a toast
// cancels its timer by construction.
type Notifier struct {
	mu      sync.Mutex
	log     logging.Logger
	store   HistoryStore
	opts    Options
	history []types.NotificationEntry
	toasts  []*toast
	newID   func() string

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

func NewNotifier(log logging.Logger, store HistoryStore, opts Options) *Notifier {
	if log == nil {
		log = logging.Nop()
	}
	if opts.MaxToasts <= 0 {
		opts.MaxToasts = defaultMaxToasts
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = defaultMaxHistory
	}
	if opts.ToastDuration <= 0 {
		opts.ToastDuration = defaultToastDuration
	}
	n := &Notifier{
		log:   log,
		store: store,
		opts:  opts,
		newID: func() string { return uuid.NewString() },
		subs:  map[int]func(){},
	}
	if store != nil {
		history, err := store.Load(context.Background())
		if err != nil {
			log.Warn("notification history load failed", logging.F("error", err))
		} else {
			n.history = history
		}
	}
	return n
}

func (n *Notifier) Subscribe(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	n.subMu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = fn
	n.subMu.Unlock()
	return func() {
		n.subMu.Lock()
		delete(n.subs, id)
		n.subMu.Unlock()
	}
}

func (n *Notifier) notifySubs() {
	n.subMu.Lock()
	fns := make([]func(), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Push records a notification and enqueues its toast. When the live queue
// exceeds the cap the oldest toast is force-expired immediately.
func (n *Notifier) Push(now time.Time, typ types.NotificationType, title, body, sessionID, directory string) types.NotificationEntry {
	if now.IsZero() {
		now = time.Now()
	}
	entry := types.NotificationEntry{
		ID:        n.newID(),
		Type:      typ,
		Title:     strings.TrimSpace(title),
		Body:      strings.TrimSpace(body),
		SessionID: sessionID,
		Directory: directory,
		CreatedAt: now,
	}

	n.mu.Lock()
	n.history = append([]types.NotificationEntry{entry}, n.history...)
	if len(n.history) > n.opts.MaxHistory {
		n.history = n.history[:n.opts.MaxHistory]
	}
	n.toasts = append(n.toasts, &toast{entry: entry, expiresAt: now.Add(n.opts.ToastDuration)})
	for len(n.liveToastsLocked()) > n.opts.MaxToasts {
		n.evictOldestLocked()
	}
	n.persistLocked()
	n.mu.Unlock()
	n.notifySubs()
	return entry
}

func (n *Notifier) liveToastsLocked() []*toast {
	live := n.toasts[:0:0]
	for _, item := range n.toasts {
		if !item.exiting {
			live = append(live, item)
		}
	}
	return live
}

func (n *Notifier) evictOldestLocked() {
	for i, item := range n.toasts {
		if item.exiting {
			continue
		}
		n.toasts = append(n.toasts[:i], n.toasts[i+1:]...)
		return
	}
}

// Sweep applies due deadlines: expiring toasts begin their exit phase and
// exited toasts are removed. The app tick drives it; there are no
// background timers to orphan.
func (n *Notifier) Sweep(now time.Time) bool {
	if now.IsZero() {
		now = time.Now()
	}
	n.mu.Lock()
	changed := false
	kept := n.toasts[:0]
	for _, item := range n.toasts {
		if item.exiting {
			if !item.removeAt.After(now) {
				changed = true
				continue
			}
			kept = append(kept, item)
			continue
		}
		if !item.expiresAt.IsZero() && !item.expiresAt.After(now) {
			item.exiting = true
			item.removeAt = now.Add(toastExitDelay)
			changed = true
		}
		kept = append(kept, item)
	}
	n.toasts = kept
	n.mu.Unlock()
	if changed {
		n.notifySubs()
	}
	return changed
}

// PauseToast suspends a toast's auto-dismiss deadline, keeping the time
// it had left.
func (n *Notifier) PauseToast(id string, now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, item := range n.toasts {
		if item.entry.ID != id || item.exiting || item.expiresAt.IsZero() {
			continue
		}
		item.remaining = item.expiresAt.Sub(now)
		if item.remaining < 0 {
			item.remaining = 0
		}
		item.expiresAt = time.Time{}
		return
	}
}

// ResumeToast re-arms a paused toast with its remaining time.
func (n *Notifier) ResumeToast(id string, now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, item := range n.toasts {
		if item.entry.ID != id || item.exiting || !item.expiresAt.IsZero() {
			continue
		}
		remaining := item.remaining
		if remaining <= 0 {
			remaining = n.opts.ToastDuration
		}
		item.expiresAt = now.Add(remaining)
		item.remaining = 0
		return
	}
}

// DismissToast transitions a toast to exiting synchronously; removal
// happens after the exit delay so the presentation layer can animate.
func (n *Notifier) DismissToast(id string, now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	n.mu.Lock()
	changed := false
	for _, item := range n.toasts {
		if item.entry.ID == id && !item.exiting {
			item.exiting = true
			item.expiresAt = time.Time{}
			item.removeAt = now.Add(toastExitDelay)
			changed = true
			break
		}
	}
	n.mu.Unlock()
	if changed {
		n.notifySubs()
	}
}

// MarkRead mutates only the persisted history, never the toast queue.
func (n *Notifier) MarkRead(id string) {
	n.mu.Lock()
	changed := false
	for i := range n.history {
		if n.history[i].ID == id && !n.history[i].Read {
			n.history[i].Read = true
			changed = true
			break
		}
	}
	if changed {
		n.persistLocked()
	}
	n.mu.Unlock()
	if changed {
		n.notifySubs()
	}
}

// Dismiss removes one entry from the persisted history.
func (n *Notifier) Dismiss(id string) {
	n.mu.Lock()
	changed := false
	for i := range n.history {
		if n.history[i].ID == id {
			n.history = append(n.history[:i], n.history[i+1:]...)
			changed = true
			break
		}
	}
	if changed {
		n.persistLocked()
	}
	n.mu.Unlock()
	if changed {
		n.notifySubs()
	}
}

// ClearAll empties the persisted history, leaving live toasts alone.
func (n *Notifier) ClearAll() {
	n.mu.Lock()
	n.history = nil
	n.persistLocked()
	n.mu.Unlock()
	n.notifySubs()
}

func (n *Notifier) persistLocked() {
	if n.store == nil {
		return
	}
	if err := n.store.Save(context.Background(), append([]types.NotificationEntry{}, n.history...)); err != nil {
		n.log.Warn("notification history save failed", logging.F("error", err))
	}
}

// Toasts returns the live queue oldest first, exiting toasts included so
// the exit animation stays visible.
func (n *Notifier) Toasts() []ToastSnapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]ToastSnapshot, 0, len(n.toasts))
	for _, item := range n.toasts {
		out = append(out, ToastSnapshot{Entry: item.entry, Exiting: item.exiting})
	}
	return out
}

// History returns the persisted history, most recent first.
func (n *Notifier) History() []types.NotificationEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]types.NotificationEntry{}, n.history...)
}
