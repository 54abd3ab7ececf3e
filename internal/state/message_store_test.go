package state

import (
	"testing"

	"deck/internal/types"
)

func textPart(id, sessionID, messageID, text string) types.Part {
	return types.Part{
		ID:        id,
		SessionID: sessionID,
		MessageID: messageID,
		Type:      types.PartText,
		Text:      text,
	}
}

func TestMessageStoreAppendsInArrivalOrder(t *testing.T) {
	store := NewMessageStore(nil)

	store.HandleMessageUpdated(types.Message{ID: "m1", SessionID: "s1", Role: types.RoleUser})
	store.HandleMessageUpdated(types.Message{ID: "m2", SessionID: "s1", Role: types.RoleAssistant})
	store.HandleMessageUpdated(types.Message{ID: "m1", SessionID: "s1", Role: types.RoleUser, Cost: 0.5})

	snap := store.SessionState("s1")
	if len(snap.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(snap.Messages))
	}
	if snap.Messages[0].Info.ID != "m1" || snap.Messages[1].Info.ID != "m2" {
		t.Fatalf("unexpected message order: %q %q", snap.Messages[0].Info.ID, snap.Messages[1].Info.ID)
	}
	if snap.Messages[0].Info.Cost != 0.5 {
		t.Fatalf("expected upsert to replace message body")
	}
}

func TestMessageStoreDeltaConcatenation(t *testing.T) {
	store := NewMessageStore(nil)
	store.HandleMessageUpdated(types.Message{ID: "m1", SessionID: "s1", Role: types.RoleAssistant})
	store.HandlePartUpdated(textPart("p1", "s1", "m1", "He"))
	store.HandlePartDelta("s1", "m1", "p1", "llo")
	store.HandlePartDelta("s1", "m1", "p1", " world")

	snap := store.SessionState("s1")
	if got := snap.Messages[0].Parts[0].Text; got != "Hello world" {
		t.Fatalf("expected concatenated text, got %q", got)
	}
	if !snap.Streaming {
		t.Fatalf("expected session to be streaming")
	}
}

func TestMessageStoreDeltaForUnknownPartDropped(t *testing.T) {
	store := NewMessageStore(nil)
	store.HandleMessageUpdated(types.Message{ID: "m1", SessionID: "s1", Role: types.RoleAssistant})

	// No part snapshot yet: the delta must be dropped without creating one.
	store.HandlePartDelta("s1", "m1", "p1", "lost")
	snap := store.SessionState("s1")
	if len(snap.Messages[0].Parts) != 0 {
		t.Fatalf("expected no parts, got %d", len(snap.Messages[0].Parts))
	}
}

func TestMessageStorePartUpsertKeepsPosition(t *testing.T) {
	store := NewMessageStore(nil)
	store.HandleMessageUpdated(types.Message{ID: "m1", SessionID: "s1", Role: types.RoleAssistant})
	store.HandlePartUpdated(textPart("p1", "s1", "m1", "first"))
	store.HandlePartUpdated(textPart("p2", "s1", "m1", "second"))
	store.HandlePartUpdated(textPart("p1", "s1", "m1", "first updated"))

	snap := store.SessionState("s1")
	parts := snap.Messages[0].Parts
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if parts[0].ID != "p1" || parts[0].Text != "first updated" {
		t.Fatalf("expected p1 updated in place, got %q %q", parts[0].ID, parts[0].Text)
	}
}

func TestMessageStorePartRemoved(t *testing.T) {
	store := NewMessageStore(nil)
	store.HandlePartUpdated(textPart("p1", "s1", "m1", "a"))
	store.HandlePartUpdated(textPart("p2", "s1", "m1", "b"))
	store.HandlePartRemoved("s1", "m1", "p1")

	snap := store.SessionState("s1")
	parts := snap.Messages[0].Parts
	if len(parts) != 1 || parts[0].ID != "p2" {
		t.Fatalf("expected only p2 to remain")
	}
	// Removing twice is a no-op.
	store.HandlePartRemoved("s1", "m1", "p1")
}

func TestMessageStoreIdleAndErrorClearStreaming(t *testing.T) {
	store := NewMessageStore(nil)
	store.HandlePartUpdated(textPart("p1", "s1", "m1", "partial"))
	if !store.Streaming("s1") {
		t.Fatalf("expected streaming after part update")
	}

	store.HandleSessionIdle("s1")
	if store.Streaming("s1") {
		t.Fatalf("expected idle to clear streaming")
	}

	store.HandlePartDelta("s1", "m1", "p1", " more")
	store.HandleSessionError("s1", &types.MessageError{Name: "APIError", Message: "rate limited"})
	snap := store.SessionState("s1")
	if snap.Streaming {
		t.Fatalf("expected error to clear streaming")
	}
	if snap.LastError == nil || snap.LastError.Name != "APIError" {
		t.Fatalf("expected error recorded")
	}
	if got := snap.Messages[0].Parts[0].Text; got != "partial more" {
		t.Fatalf("expected partial output preserved, got %q", got)
	}
}

func TestMessageStoreSnapshotIsDetached(t *testing.T) {
	store := NewMessageStore(nil)
	store.HandlePartUpdated(textPart("p1", "s1", "m1", "one"))

	snap := store.SessionState("s1")
	store.HandlePartDelta("s1", "m1", "p1", " two")

	if snap.Messages[0].Parts[0].Text != "one" {
		t.Fatalf("snapshot mutated by later delta")
	}
}

func TestMessageStoreSubscribeNotify(t *testing.T) {
	store := NewMessageStore(nil)
	calls := 0
	unsub := store.Subscribe(func() { calls++ })

	store.HandlePartUpdated(textPart("p1", "s1", "m1", "x"))
	if calls == 0 {
		t.Fatalf("expected notification after mutation")
	}

	before := calls
	unsub()
	store.HandlePartDelta("s1", "m1", "p1", "y")
	if calls != before {
		t.Fatalf("expected no notification after unsubscribe")
	}
}
