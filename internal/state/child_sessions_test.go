package state

import (
	"testing"

	"deck/internal/types"
)

func TestChildSessionTrackerDescent(t *testing.T) {
	tracker := NewChildSessionTracker()
	tracker.RegisterChildSession(types.Session{ID: "child", ParentID: "root"})
	tracker.RegisterChildSession(types.Session{ID: "grandchild", ParentID: "child"})

	cases := []struct {
		candidate string
		root      string
		want      bool
	}{
		{"root", "root", true},
		{"child", "root", true},
		{"grandchild", "root", true},
		{"grandchild", "child", true},
		{"root", "child", false},
		{"other", "root", false},
		{"", "root", false},
	}
	for _, tc := range cases {
		if got := tracker.BelongsToSession(tc.candidate, tc.root); got != tc.want {
			t.Fatalf("BelongsToSession(%q,%q)=%v want %v", tc.candidate, tc.root, got, tc.want)
		}
	}
}

func TestChildSessionTrackerIgnoresTopLevel(t *testing.T) {
	tracker := NewChildSessionTracker()
	tracker.RegisterChildSession(types.Session{ID: "top"})
	if tracker.BelongsToSession("top", "anything") {
		t.Fatalf("top-level session must not gain a parent")
	}
}

func TestChildSessionTrackerCycleBounded(t *testing.T) {
	tracker := NewChildSessionTracker()
	tracker.RegisterChildSession(types.Session{ID: "a", ParentID: "b"})
	tracker.RegisterChildSession(types.Session{ID: "b", ParentID: "a"})
	if tracker.BelongsToSession("a", "missing") {
		t.Fatalf("cycle must terminate false")
	}
}

func TestChildSessionTrackerLastState(t *testing.T) {
	tracker := NewChildSessionTracker()
	tracker.RegisterChildSession(types.Session{ID: "child", ParentID: "root"})

	tracker.MarkIdle("child")
	if tracker.LastState("child") != "idle" {
		t.Fatalf("expected idle mark")
	}
	tracker.MarkError("child")
	if tracker.LastState("child") != "error" {
		t.Fatalf("expected error mark")
	}
	// Unknown sessions are not tracked.
	tracker.MarkIdle("stranger")
	if tracker.LastState("stranger") != "" {
		t.Fatalf("expected no mark for unregistered session")
	}
}
