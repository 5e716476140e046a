package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tmaxmax/go-sse"

	"github.com/zhouzirui/happymac/backend/internal/model/chat"
	"github.com/zhouzirui/happymac/backend/internal/model/persona"
	"github.com/zhouzirui/happymac/backend/pkg/utils"
)

// StreamChat posts the history to /api/chat and dispatches the SSE events
// to handlers. Failures before the stream opens are returned; failures after
// that go to OnError.
func (c *Client) StreamChat(ctx context.Context, messages []chat.Message, handlers chat.StreamHandlers) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/chat", map[string]any{"messages": messages})
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	for ev, err := range sse.Read(resp.Body, nil) {
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				handlers.Fail(context.Canceled.Error())
				return nil
			}
			handlers.Fail(fmt.Sprintf("error reading response: %v", err))
			return nil
		}

		switch ev.Type {
		case "delta":
			var payload utils.DeltaPayload
			if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
				handlers.Fail(fmt.Sprintf("malformed delta: %v", err))
				return nil
			}
			handlers.Delta(payload.Content)
		case "done":
			handlers.Done()
			return nil
		case "error":
			var payload utils.ErrorPayload
			if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil || payload.Error == "" {
				payload.Error = "stream failed"
			}
			handlers.Fail(payload.Error)
			return nil
		default:
			c.logger.Debug("ignoring event", slog.String("type", ev.Type))
		}
	}
	return nil
}

// Generate calls the non-streaming endpoint.
func (c *Client) Generate(ctx context.Context, message, historyText string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/generate", map[string]string{
		"message": message,
		"history": historyText,
	})
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate: %w", err)
	}
	return out.Text, nil
}

// Persona fetches the persona display data.
func (c *Client) Persona(ctx context.Context) (persona.Persona, error) {
	var p persona.Persona
	err := c.getJSON(ctx, "/api/persona", &p)
	return p, err
}
