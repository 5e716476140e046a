package utils

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tmaxmax/go-sse"
)

// Event types of the chat stream.
var (
	EventDelta = sse.Type("delta")
	EventDone  = sse.Type("done")
	EventError = sse.Type("error")
)

// DeltaPayload carries one chunk of assistant text.
type DeltaPayload struct {
	Content string `json:"content"`
}

// ErrorPayload carries a mid-stream failure.
type ErrorPayload struct {
	Error string `json:"error"`
}

// SSEWriter sends JSON encoded events over an upgraded response. Upgrade
// happens on the first event, so the handler can still answer with a plain
// JSON error until then.
type SSEWriter struct {
	w    http.ResponseWriter
	r    *http.Request
	sess *sse.Session
}

// NewSSEWriter prepares w for streaming without touching the response yet.
func NewSSEWriter(w http.ResponseWriter, r *http.Request) *SSEWriter {
	return &SSEWriter{w: w, r: r}
}

// Started reports whether the event stream has begun.
func (s *SSEWriter) Started() bool {
	return s.sess != nil
}

// Send writes one event and flushes it.
func (s *SSEWriter) Send(typ sse.EventType, payload any) error {
	if s.sess == nil {
		sess, err := sse.Upgrade(s.w, s.r)
		if err != nil {
			return fmt.Errorf("sse upgrade: %w", err)
		}
		s.sess = sess
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sse payload: %w", err)
	}

	msg := &sse.Message{Type: typ}
	msg.AppendData(string(data))
	if err := s.sess.Send(msg); err != nil {
		return err
	}
	return s.sess.Flush()
}
