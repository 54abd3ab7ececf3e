package client

import "deck/internal/types"

type HealthResponse struct {
	OK         bool   `json:"ok"`
	Version    string `json:"version,omitempty"`
	InstanceID string `json:"instanceID,omitempty"`
}

type SessionsResponse struct {
	Sessions []types.Session `json:"sessions"`
}

type SessionStatusResponse struct {
	Status map[string]string `json:"status"`
}

type PendingRequestsResponse struct {
	Requests []types.PendingRequest `json:"requests"`
}

type ReplyRequest struct {
	Response string `json:"response"`
}

type SendMessageRequest struct {
	Text string `json:"text"`
}
