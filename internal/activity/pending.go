package activity

import (
	"strings"
	"sync"
	"time"

	"deck/internal/logging"
	"deck/internal/types"
)

const defaultReconcileTimeout = 5 * time.Second

// Reconciler holds permission/question requests whose owning session has
// not been registered yet. The server pushes prompt events and
// session-creation events on independent schedules, so a prompt can win
// the race; cached entries are replayed opportunistically when
// session.created arrives. Entries older than the timeout are purged on
// each session.created rather than by a background timer. An expired entry
// only loses the "please respond" routing; the server-side request is
// still visible through the Tracker's busy state.
type Reconciler struct {
	mu      sync.Mutex
	log     logging.Logger
	timeout time.Duration
	now     func() time.Time
	deliver func(types.PendingRequest)
	known   map[string]struct{}
	cached  map[string][]cachedRequest
}

type cachedRequest struct {
	req       types.PendingRequest
	arrivedAt time.Time
}

func NewReconciler(log logging.Logger, deliver func(types.PendingRequest)) *Reconciler {
	if log == nil {
		log = logging.Nop()
	}
	if deliver == nil {
		deliver = func(types.PendingRequest) {}
	}
	return &Reconciler{
		log:     log,
		timeout: defaultReconcileTimeout,
		now:     time.Now,
		deliver: deliver,
		known:   map[string]struct{}{},
		cached:  map[string][]cachedRequest{},
	}
}

// Offer routes a request to the UI callback when its session is already
// known, otherwise caches it for replay.
func (r *Reconciler) Offer(req types.PendingRequest) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" || strings.TrimSpace(req.ID) == "" {
		r.log.Warn("request dropped: missing ids", logging.F("request_id", req.ID))
		return
	}
	r.mu.Lock()
	if _, ok := r.known[sessionID]; ok {
		r.mu.Unlock()
		r.deliver(req)
		return
	}
	r.cached[sessionID] = append(r.cached[sessionID], cachedRequest{req: req, arrivedAt: r.now()})
	r.mu.Unlock()
	r.log.Debug("request cached for unknown session",
		logging.F("request_id", req.ID),
		logging.F("session_id", sessionID),
		logging.F("kind", string(req.Kind)),
	)
}

// Withdraw drops a cached entry whose request resolved before its session
// was ever registered.
func (r *Reconciler) Withdraw(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sessionID, entries := range r.cached {
		kept := entries[:0]
		for _, entry := range entries {
			if entry.req.ID != requestID {
				kept = append(kept, entry)
			}
		}
		if len(kept) == 0 {
			delete(r.cached, sessionID)
		} else {
			r.cached[sessionID] = kept
		}
	}
}

// SessionCreated registers the session, purges expired entries across the
// whole cache, and replays the session's cached requests when inView
// reports that the session belongs to the user's active view. Requests
// for out-of-view sessions stay cached for the timeout window in case the
// view changes.
func (r *Reconciler) SessionCreated(sessionID string, inView bool) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return
	}
	r.mu.Lock()
	r.known[sessionID] = struct{}{}
	r.purgeExpiredLocked()
	var replay []types.PendingRequest
	if inView {
		for _, entry := range r.cached[sessionID] {
			replay = append(replay, entry.req)
		}
		delete(r.cached, sessionID)
	}
	r.mu.Unlock()
	for _, req := range replay {
		r.deliver(req)
	}
}

func (r *Reconciler) purgeExpiredLocked() {
	cutoff := r.now().Add(-r.timeout)
	for sessionID, entries := range r.cached {
		kept := entries[:0]
		for _, entry := range entries {
			if entry.arrivedAt.After(cutoff) {
				kept = append(kept, entry)
				continue
			}
			r.log.Warn("cached request expired unclaimed",
				logging.F("request_id", entry.req.ID),
				logging.F("session_id", sessionID),
			)
		}
		if len(kept) == 0 {
			delete(r.cached, sessionID)
		} else {
			r.cached[sessionID] = kept
		}
	}
}

// Reset forgets known sessions and the cache; used on full resync, after
// which the pull snapshot re-seeds pending state.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.known = map[string]struct{}{}
	r.cached = map[string][]cachedRequest{}
	r.mu.Unlock()
}

func (r *Reconciler) CachedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, entries := range r.cached {
		n += len(entries)
	}
	return n
}
