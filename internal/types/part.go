package types

// PartType is the closed set of message content kinds. A part's ID is
// stable across incremental updates; deltas append to an existing part's
// text rather than creating a new part.
type PartType string

const (
	PartText         PartType = "text"
	PartReasoning    PartType = "reasoning"
	PartToolCall     PartType = "tool"
	PartFile         PartType = "file"
	PartAgentMention PartType = "agent"
	PartStepStart    PartType = "step-start"
	PartStepFinish   PartType = "step-finish"
	PartSnapshot     PartType = "snapshot"
	PartPatch        PartType = "patch"
	PartSubtask      PartType = "subtask"
	PartRetry        PartType = "retry"
	PartCompaction   PartType = "compaction"
)

type Part struct {
	ID        string   `json:"id"`
	SessionID string   `json:"sessionID"`
	MessageID string   `json:"messageID"`
	Type      PartType `json:"type"`
	Text      string   `json:"text,omitempty"`
	Tool      string   `json:"tool,omitempty"`
	CallID    string   `json:"callID,omitempty"`
	Status    string   `json:"status,omitempty"`
	Filename  string   `json:"filename,omitempty"`
}
