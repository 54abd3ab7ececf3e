package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deck/internal/logging"
	"deck/internal/types"
)

// Client is the pull side of the server interface: point-in-time
// snapshots used at startup and for full resynchronization after a
// reconnect. The push side lives in events.go.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     logging.Logger
}

func New(baseURL, token string, log logging.Logger) *Client {
	if log == nil {
		log = logging.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]types.Session, error) {
	var resp SessionsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/session", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// SessionStatus returns the busy/idle/retrying snapshot for every session
// the server knows about.
func (c *Client) SessionStatus(ctx context.Context) (map[string]types.SessionActivity, error) {
	var resp SessionStatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/session/status", nil, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]types.SessionActivity, len(resp.Status))
	for id, raw := range resp.Status {
		status, ok := types.NormalizeSessionActivity(raw)
		if !ok {
			c.log.Warn("unknown session status", logging.F("session_id", id), logging.F("status", raw))
			continue
		}
		out[id] = status
	}
	return out, nil
}

func (c *Client) PendingPermissions(ctx context.Context) ([]types.PendingRequest, error) {
	var resp PendingRequestsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/permission", nil, &resp); err != nil {
		return nil, err
	}
	return tagRequests(resp.Requests, types.RequestPermission), nil
}

func (c *Client) PendingQuestions(ctx context.Context) ([]types.PendingRequest, error) {
	var resp PendingRequestsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/question", nil, &resp); err != nil {
		return nil, err
	}
	return tagRequests(resp.Requests, types.RequestQuestion), nil
}

func tagRequests(requests []types.PendingRequest, kind types.RequestKind) []types.PendingRequest {
	out := make([]types.PendingRequest, 0, len(requests))
	for _, req := range requests {
		req.Kind = kind
		out = append(out, req)
	}
	return out
}

func (c *Client) ReplyPermission(ctx context.Context, requestID, response string) error {
	path := fmt.Sprintf("/permission/%s/reply", strings.TrimSpace(requestID))
	return c.doJSON(ctx, http.MethodPost, path, ReplyRequest{Response: response}, nil)
}

func (c *Client) AnswerQuestion(ctx context.Context, requestID, answer string) error {
	path := fmt.Sprintf("/question/%s/reply", strings.TrimSpace(requestID))
	return c.doJSON(ctx, http.MethodPost, path, ReplyRequest{Response: answer}, nil)
}

func (c *Client) SendMessage(ctx context.Context, sessionID, text string) error {
	path := fmt.Sprintf("/session/%s/message", strings.TrimSpace(sessionID))
	return c.doJSON(ctx, http.MethodPost, path, SendMessageRequest{Text: text}, nil)
}

func (c *Client) AbortSession(ctx context.Context, sessionID string) error {
	path := fmt.Sprintf("/session/%s/abort", strings.TrimSpace(sessionID))
	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	type errorPayload struct {
		Error string `json:"error"`
	}
	var payload errorPayload
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	if payload.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
}

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}
