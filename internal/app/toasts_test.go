package app

import (
	"strings"
	"testing"

	"deck/internal/notify"
	"deck/internal/types"
)

func TestToastOverlayRendersEachToast(t *testing.T) {
	toasts := []notify.ToastSnapshot{
		{Entry: types.NotificationEntry{ID: "n1", Type: types.NotificationDone, Title: "Agent finished", Body: "build"}},
		{Entry: types.NotificationEntry{ID: "n2", Type: types.NotificationError, Title: "APIError"}, Exiting: true},
	}
	lines := toastOverlay(toasts, 60)
	if len(lines) != 2 {
		t.Fatalf("expected 2 overlay lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "Agent finished: build") {
		t.Fatalf("unexpected first toast line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "APIError") {
		t.Fatalf("unexpected second toast line: %q", lines[1])
	}
}

func TestToastOverlayEmpty(t *testing.T) {
	if lines := toastOverlay(nil, 60); lines != nil {
		t.Fatalf("expected nil overlay, got %v", lines)
	}
	toasts := []notify.ToastSnapshot{{Entry: types.NotificationEntry{Title: "x"}}}
	if lines := toastOverlay(toasts, 0); lines != nil {
		t.Fatalf("expected nil overlay at zero width, got %v", lines)
	}
}
