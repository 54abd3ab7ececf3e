package client

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"deck/internal/logging"
	"deck/internal/types"
)

type ReconnectReason string

const (
	// ReconnectNetwork means the same server instance was reached again
	// after a transport drop.
	ReconnectNetwork ReconnectReason = "network"
	// ReconnectServerSwitch means the server identity changed across the
	// reconnect; in-memory state may describe a different world.
	ReconnectServerSwitch ReconnectReason = "server-switch"
)

// EventHandlers is the named-callback table for the push stream. Nil
// entries are skipped.
type EventHandlers struct {
	OnMessageUpdated    func(types.Message)
	OnPartUpdated       func(types.Part)
	OnPartDelta         func(sessionID, messageID, partID, text string)
	OnPartRemoved       func(sessionID, messageID, partID string)
	OnSessionCreated    func(types.Session)
	OnSessionUpdated    func(types.Session)
	OnSessionIdle       func(sessionID string)
	OnSessionError      func(sessionID string, errInfo *types.MessageError)
	OnSessionStatus     func(sessionID string, status types.SessionActivity)
	OnPermissionAsked   func(types.PendingRequest)
	OnPermissionReplied func(requestID string)
	OnQuestionAsked     func(types.PendingRequest)
	OnQuestionReplied   func(requestID string)
	OnQuestionRejected  func(requestID string)
	OnReconnected       func(reason ReconnectReason)
}

const (
	reconnectBaseDelay = 500 * time.Millisecond
	reconnectMaxDelay  = 15 * time.Second
)

// SubscribeEvents opens the long-lived event stream and dispatches each
// event to the handler table, reconnecting with backoff until the
// returned unsubscribe function is called. Each (re)connection gets an
// increasing id so log lines from a superseded reader are attributable.
func (c *Client) SubscribeEvents(ctx context.Context, handlers EventHandlers) func() {
	ctx, cancel := context.WithCancel(ctx)
	go c.streamLoop(ctx, handlers)
	return cancel
}

func (c *Client) streamLoop(ctx context.Context, handlers EventHandlers) {
	delay := reconnectBaseDelay
	connID := 0
	instanceID := ""
	connectedBefore := false

	for {
		if ctx.Err() != nil {
			return
		}
		connID++
		log := c.log.With(logging.F("conn_id", connID))

		err := c.readEvents(ctx, log, handlers, func() {
			delay = reconnectBaseDelay
			if !connectedBefore {
				connectedBefore = true
				instanceID = c.probeInstanceID(ctx)
				return
			}
			reason := ReconnectNetwork
			current := c.probeInstanceID(ctx)
			if current != "" && instanceID != "" && current != instanceID {
				reason = ReconnectServerSwitch
			}
			instanceID = current
			log.Info("event stream reconnected", logging.F("reason", string(reason)))
			if handlers.OnReconnected != nil {
				handlers.OnReconnected(reason)
			}
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warn("event stream disconnected", logging.F("error", err), logging.F("retry_in", delay))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

func (c *Client) probeInstanceID(ctx context.Context) string {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	health, err := c.Health(probeCtx)
	if err != nil {
		return ""
	}
	return health.InstanceID
}

// readEvents runs one SSE connection to completion. onConnected fires
// once the stream is open, after which every data frame is decoded and
// dispatched synchronously on this goroutine.
func (c *Client) readEvents(ctx context.Context, log logging.Logger, handlers EventHandlers, onConnected func()) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/event", nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout: the stream is expected to stay open.
	httpClient := &http.Client{Transport: c.http.Transport}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	onConnected()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if len(dataLines) == 0 {
				continue
			}
			payload := strings.Join(dataLines, "\n")
			dataLines = dataLines[:0]
			var event types.Event
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				log.Warn("malformed event frame", logging.F("error", err))
				continue
			}
			dispatchEvent(log, handlers, event)
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(line[len("data:"):]))
		}
	}
	return scanner.Err()
}

// dispatchEvent decodes the envelope's properties for its kind and calls
// the matching handler. A payload that fails to decode is dropped with a
// log line; one malformed event must not disturb the stream.
func dispatchEvent(log logging.Logger, handlers EventHandlers, event types.Event) {
	if log == nil {
		log = logging.Nop()
	}
	drop := func(err error) {
		log.Warn("event payload dropped", logging.F("type", event.Type), logging.F("error", err))
	}
	switch event.Type {
	case types.EventMessageUpdated:
		var payload types.MessageEventPayload
		if err := json.Unmarshal(event.Properties, &payload); err != nil {
			drop(err)
			return
		}
		if handlers.OnMessageUpdated != nil {
			handlers.OnMessageUpdated(payload.Info)
		}
	case types.EventPartUpdated:
		var payload types.PartEventPayload
		if err := json.Unmarshal(event.Properties, &payload); err != nil {
			drop(err)
			return
		}
		if handlers.OnPartUpdated != nil {
			handlers.OnPartUpdated(payload.Part)
		}
	case types.EventPartDelta:
		var payload types.PartDeltaPayload
		if err := json.Unmarshal(event.Properties, &payload); err != nil {
			drop(err)
			return
		}
		if handlers.OnPartDelta != nil {
			handlers.OnPartDelta(payload.SessionID, payload.MessageID, payload.PartID, payload.Text)
		}
	case types.EventPartRemoved:
		var payload types.PartRemovedPayload
		if err := json.Unmarshal(event.Properties, &payload); err != nil {
			drop(err)
			return
		}
		if handlers.OnPartRemoved != nil {
			handlers.OnPartRemoved(payload.SessionID, payload.MessageID, payload.PartID)
		}
	case types.EventSessionCreated:
		var payload types.SessionEventPayload
		if err := json.Unmarshal(event.Properties, &payload); err != nil {
			drop(err)
			return
		}
		if handlers.OnSessionCreated != nil {
			handlers.OnSessionCreated(payload.Info)
		}
	case types.EventSessionUpdated:
		var payload types.SessionEventPayload
		if err := json.Unmarshal(event.Properties, &payload); err != nil {
			drop(err)
			return
		}
		if handlers.OnSessionUpdated != nil {
			handlers.OnSessionUpdated(payload.Info)
		}
	case types.EventSessionIdle:
		var payload types.SessionIdlePayload
		if err := json.Unmarshal(event.Properties, &payload); err != nil {
			drop(err)
			return
		}
		if handlers.OnSessionIdle != nil {
			handlers.OnSessionIdle(payload.SessionID)
		}
	case types.EventSessionError:
		var payload types.SessionErrorPayload
		if err := json.Unmarshal(event.Properties, &payload); err != nil {
			drop(err)
			return
		}
		if handlers.OnSessionError != nil {
			handlers.OnSessionError(payload.SessionID, payload.Error)
		}
	case types.EventSessionStatus:
		var payload types.SessionStatusPayload
		if err := json.Unmarshal(event.Properties, &payload); err != nil {
			drop(err)
			return
		}
		status, ok := types.NormalizeSessionActivity(payload.Status)
		if !ok {
			log.Warn("unknown session status", logging.F("session_id", payload.SessionID), logging.F("status", payload.Status))
			return
		}
		if handlers.OnSessionStatus != nil {
			handlers.OnSessionStatus(payload.SessionID, status)
		}
	case types.EventPermissionAsked:
		var payload types.PermissionPayload
		if err := json.Unmarshal(event.Properties, &payload); err != nil {
			drop(err)
			return
		}
		if handlers.OnPermissionAsked != nil {
			handlers.OnPermissionAsked(types.PendingRequest{
				ID:          payload.ID,
				SessionID:   payload.SessionID,
				Kind:        types.RequestPermission,
				Description: payload.Title,
				AskedAt:     time.Now(),
			})
		}
	case types.EventPermissionReplied:
		var payload types.RequestResolvedPayload
		if err := json.Unmarshal(event.Properties, &payload); err != nil {
			drop(err)
			return
		}
		if handlers.OnPermissionReplied != nil {
			handlers.OnPermissionReplied(payload.ID)
		}
	case types.EventQuestionAsked:
		var payload types.QuestionPayload
		if err := json.Unmarshal(event.Properties, &payload); err != nil {
			drop(err)
			return
		}
		if handlers.OnQuestionAsked != nil {
			handlers.OnQuestionAsked(types.PendingRequest{
				ID:          payload.ID,
				SessionID:   payload.SessionID,
				Kind:        types.RequestQuestion,
				Description: payload.Text,
				AskedAt:     time.Now(),
			})
		}
	case types.EventQuestionReplied:
		var payload types.RequestResolvedPayload
		if err := json.Unmarshal(event.Properties, &payload); err != nil {
			drop(err)
			return
		}
		if handlers.OnQuestionReplied != nil {
			handlers.OnQuestionReplied(payload.ID)
		}
	case types.EventQuestionRejected:
		var payload types.RequestResolvedPayload
		if err := json.Unmarshal(event.Properties, &payload); err != nil {
			drop(err)
			return
		}
		if handlers.OnQuestionRejected != nil {
			handlers.OnQuestionRejected(payload.ID)
		}
	default:
		log.Debug("unhandled event type", logging.F("type", event.Type))
	}
}
