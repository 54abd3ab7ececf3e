package app

import (
	"sync"

	"deck/internal/types"
)

// promptInbox buffers permission/question prompts delivered from the
// event-dispatch goroutine until the UI loop collects them on its next
// tick. Duplicate request ids collapse to the latest delivery.
type promptInbox struct {
	mu    sync.Mutex
	queue []types.PendingRequest
}

func newPromptInbox() *promptInbox {
	return &promptInbox{}
}

func (p *promptInbox) Deliver(req types.PendingRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.queue {
		if p.queue[i].ID == req.ID {
			p.queue[i] = req
			return
		}
	}
	p.queue = append(p.queue, req)
}

func (p *promptInbox) Next() (types.PendingRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return types.PendingRequest{}, false
	}
	req := p.queue[0]
	p.queue = p.queue[1:]
	return req, true
}

// Drop discards a queued prompt whose request resolved before the UI
// presented it.
func (p *promptInbox) Drop(requestID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.queue {
		if p.queue[i].ID == requestID {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			return
		}
	}
}

func (p *promptInbox) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}
