package app

import (
	"strings"

	"charm.land/lipgloss/v2"

	"deck/internal/notify"
	"deck/internal/types"
)

// toastOverlay renders the live toast stack, newest at the bottom,
// right-aligned like a tray popup. Exiting toasts dim but keep their
// line until the sweep removes them.
func toastOverlay(toasts []notify.ToastSnapshot, width int) []string {
	if len(toasts) == 0 || width <= 0 {
		return nil
	}
	lines := make([]string, 0, len(toasts))
	maxTextWidth := max(1, width-4)
	for _, toast := range toasts {
		text := toast.Entry.Title
		if toast.Entry.Body != "" {
			text += ": " + toast.Entry.Body
		}
		text = truncateToWidth(strings.TrimSpace(text), maxTextWidth)
		pill := toastPillStyle(toast).Render(" " + text + " ")
		lines = append(lines, lipgloss.PlaceHorizontal(width, lipgloss.Right, pill))
	}
	return lines
}

func toastPillStyle(toast notify.ToastSnapshot) lipgloss.Style {
	if toast.Exiting {
		return toastExitingStyle
	}
	switch toast.Entry.Type {
	case types.NotificationError:
		return toastErrorStyle
	case types.NotificationPermission, types.NotificationQuestion:
		return toastWarningStyle
	default:
		return toastInfoStyle
	}
}
