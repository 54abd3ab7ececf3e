package app

import (
	"testing"

	"deck/internal/types"
)

func TestPromptInboxFIFO(t *testing.T) {
	inbox := newPromptInbox()
	inbox.Deliver(types.PendingRequest{ID: "r1", SessionID: "s1"})
	inbox.Deliver(types.PendingRequest{ID: "r2", SessionID: "s1"})

	first, ok := inbox.Next()
	if !ok || first.ID != "r1" {
		t.Fatalf("expected r1 first, got %+v", first)
	}
	second, ok := inbox.Next()
	if !ok || second.ID != "r2" {
		t.Fatalf("expected r2 second, got %+v", second)
	}
	if _, ok := inbox.Next(); ok {
		t.Fatalf("expected empty inbox")
	}
}

func TestPromptInboxCollapsesDuplicates(t *testing.T) {
	inbox := newPromptInbox()
	inbox.Deliver(types.PendingRequest{ID: "r1", Description: "old"})
	inbox.Deliver(types.PendingRequest{ID: "r1", Description: "new"})

	if inbox.Len() != 1 {
		t.Fatalf("expected duplicate collapsed, len=%d", inbox.Len())
	}
	req, _ := inbox.Next()
	if req.Description != "new" {
		t.Fatalf("expected latest delivery kept, got %q", req.Description)
	}
}

func TestPromptInboxDrop(t *testing.T) {
	inbox := newPromptInbox()
	inbox.Deliver(types.PendingRequest{ID: "r1"})
	inbox.Deliver(types.PendingRequest{ID: "r2"})
	inbox.Drop("r1")

	req, ok := inbox.Next()
	if !ok || req.ID != "r2" {
		t.Fatalf("expected r1 dropped, got %+v ok=%v", req, ok)
	}
}
