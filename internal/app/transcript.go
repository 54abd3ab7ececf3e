package app

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"deck/internal/state"
	"deck/internal/types"
)

// transcriptContext carries everything the renderer needs beyond the
// snapshot itself: unanswered prompts for the session and the smoothed
// reveal text substituted for the streaming tail part.
type transcriptContext struct {
	Pending    []types.PendingRequest
	StreamTail string
	HasTail    bool
}

// renderTranscript turns a session snapshot into transcript lines. Parts
// render in server order; the streaming tail (the last assistant text
// part while the session is streaming) shows the paced reveal text
// instead of the raw store content.
func renderTranscript(snapshot state.SessionSnapshot, rctx transcriptContext, width int) string {
	if width <= 0 {
		width = 80
	}
	var lines []string
	tailMessage, tailPart := streamTailLocation(snapshot)

	for mi, msg := range snapshot.Messages {
		for pi, part := range msg.Parts {
			text := part.Text
			if rctx.HasTail && mi == tailMessage && pi == tailPart {
				text = rctx.StreamTail
			}
			rendered := renderPart(msg.Info, part, text, width)
			if len(rendered) > 0 {
				lines = append(lines, rendered...)
				lines = append(lines, "")
			}
		}
	}

	for _, req := range rctx.Pending {
		lines = append(lines, renderPrompt(req, width)...)
		lines = append(lines, "")
	}

	if snapshot.LastError != nil && !snapshot.LastError.Aborted() {
		body := snapshot.LastError.Name
		if snapshot.LastError.Message != "" {
			body += ": " + snapshot.LastError.Message
		}
		lines = append(lines, errorBubbleStyle.Render(truncateToWidth(body, max(1, width-4))))
		lines = append(lines, "")
	}

	if len(lines) == 0 {
		return metaStyle.Render("No messages yet.")
	}
	return strings.Join(lines, "\n")
}

// streamTailLocation finds the last assistant text part, the only part a
// delta stream can still be appending to.
func streamTailLocation(snapshot state.SessionSnapshot) (int, int) {
	if !snapshot.Streaming {
		return -1, -1
	}
	for mi := len(snapshot.Messages) - 1; mi >= 0; mi-- {
		msg := snapshot.Messages[mi]
		if msg.Info.Role != types.RoleAssistant {
			continue
		}
		for pi := len(msg.Parts) - 1; pi >= 0; pi-- {
			if msg.Parts[pi].Type == types.PartText {
				return mi, pi
			}
		}
	}
	return -1, -1
}

func renderPart(info types.Message, part types.Part, text string, width int) []string {
	maxBubbleWidth := width - 4
	if maxBubbleWidth < 10 {
		maxBubbleWidth = width
	}
	innerWidth := maxBubbleWidth - 2 - 2
	if innerWidth < 1 {
		innerWidth = 1
	}

	switch part.Type {
	case types.PartText:
		if strings.TrimSpace(text) == "" {
			return nil
		}
		if info.Role == types.RoleUser {
			bubble := userBubbleStyle.Render(renderMarkdown(escapeMarkdown(text), innerWidth))
			return strings.Split(lipgloss.PlaceHorizontal(width, lipgloss.Right, bubble), "\n")
		}
		bubble := agentBubbleStyle.Render(renderMarkdown(text, innerWidth))
		return strings.Split(lipgloss.PlaceHorizontal(width, lipgloss.Left, bubble), "\n")
	case types.PartReasoning:
		if strings.TrimSpace(text) == "" {
			return nil
		}
		bubble := reasoningStyle.Render(renderMarkdown(text, innerWidth))
		return strings.Split(bubble, "\n")
	case types.PartToolCall:
		label := part.Tool
		if label == "" {
			label = "tool"
		}
		if part.Status != "" {
			label = fmt.Sprintf("%s (%s)", label, part.Status)
		}
		return []string{toolStyle.Render(truncateToWidth(label, innerWidth))}
	case types.PartFile:
		name := part.Filename
		if name == "" {
			name = "file"
		}
		return []string{metaStyle.Render(truncateToWidth("attached "+name, width))}
	case types.PartStepStart, types.PartStepFinish, types.PartSnapshot,
		types.PartPatch, types.PartSubtask, types.PartRetry, types.PartCompaction:
		return []string{metaStyle.Render(truncateToWidth(string(part.Type), width))}
	default:
		return nil
	}
}

func renderPrompt(req types.PendingRequest, width int) []string {
	label := "Permission"
	hint := "y approve / d deny"
	if req.Kind == types.RequestQuestion {
		label = "Question"
		hint = "type answer, enter to send"
	}
	body := label
	if strings.TrimSpace(req.Description) != "" {
		body += ": " + req.Description
	}
	body += "\n" + hint
	inner := max(1, width-8)
	bubble := promptBubbleStyle.Render(truncateBlock(body, inner))
	return strings.Split(bubble, "\n")
}

func truncateBlock(text string, width int) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = truncateToWidth(line, width)
	}
	return strings.Join(lines, "\n")
}
