package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/happymac/backend/internal/logging"
	"github.com/zhouzirui/happymac/backend/internal/model/chat"
	aiService "github.com/zhouzirui/happymac/backend/internal/service/ai"
)

type fakeService struct {
	chunks    []string
	failWith  string
	setupErr  error
	got       []chat.Message
	generated string
	genArgs   [2]string
}

func (f *fakeService) StreamChat(_ context.Context, messages []chat.Message, handlers chat.StreamHandlers) error {
	f.got = messages
	if f.setupErr != nil {
		return f.setupErr
	}
	for _, c := range f.chunks {
		handlers.Delta(c)
	}
	if f.failWith != "" {
		handlers.Fail(f.failWith)
		return nil
	}
	handlers.Done()
	return nil
}

func (f *fakeService) GenerateResponse(_ context.Context, userMessage, historyText string) string {
	f.genArgs = [2]string{userMessage, historyText}
	return f.generated
}

func setupRouter(svc *fakeService) *chi.Mux {
	r := chi.NewRouter()
	New(svc, logging.Discard()).RegisterRoutes(r)
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

// eventNames lists the event fields of an SSE body in order.
func eventNames(body string) []string {
	var names []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "event:") {
			names = append(names, strings.TrimSpace(strings.TrimPrefix(line, "event:")))
		}
	}
	return names
}

func TestChatStreamsDeltasThenDone(t *testing.T) {
	svc := &fakeService{chunks: []string{"Hel", "lo!"}}
	resp := postJSON(t, setupRouter(svc), "/chat", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "Hi"}},
	})

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := strings.Join(eventNames(resp.Body.String()), ","); got != "delta,delta,done" {
		t.Fatalf("unexpected events %s", got)
	}
	if !strings.Contains(resp.Body.String(), `{"content":"lo!"}`) {
		t.Fatalf("missing delta payload in %q", resp.Body.String())
	}
	if len(svc.got) != 1 || svc.got[0].Role != chat.RoleUser || svc.got[0].Content != "Hi" {
		t.Fatalf("unexpected history %+v", svc.got)
	}
}

func TestChatStreamsMidStreamError(t *testing.T) {
	svc := &fakeService{chunks: []string{"partial"}, failWith: "model overloaded"}
	resp := postJSON(t, setupRouter(svc), "/chat", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "Hi"}},
	})

	if got := strings.Join(eventNames(resp.Body.String()), ","); got != "delta,error" {
		t.Fatalf("unexpected events %s", got)
	}
	if !strings.Contains(resp.Body.String(), `{"error":"model overloaded"}`) {
		t.Fatalf("missing error payload in %q", resp.Body.String())
	}
}

func TestChatSetupFailureIsPlainJSON(t *testing.T) {
	svc := &fakeService{setupErr: aiService.ErrClosed}
	resp := postJSON(t, setupRouter(svc), "/chat", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "Hi"}},
	})

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON error, got %q", ct)
	}
}

func TestChatRejectsInvalidConversation(t *testing.T) {
	cases := []struct {
		name string
		body any
	}{
		{name: "empty", body: map[string]any{"messages": []any{}}},
		{name: "bad role", body: map[string]any{"messages": []map[string]string{{"role": "system", "content": "x"}}}},
	}

	for _, tc := range cases {
		svc := &fakeService{}
		resp := postJSON(t, setupRouter(svc), "/chat", tc.body)
		if resp.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, resp.Code)
		}
		if svc.got != nil {
			t.Errorf("%s: service should not be called", tc.name)
		}
	}
}

func TestGenerate(t *testing.T) {
	svc := &fakeService{generated: "Beep boop, hello!"}
	resp := postJSON(t, setupRouter(svc), "/generate", map[string]string{
		"message": "Hi",
		"history": "User: earlier\n",
	})

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Text != "Beep boop, hello!" {
		t.Fatalf("unexpected text %q", out.Text)
	}
	if svc.genArgs != [2]string{"Hi", "User: earlier\n"} {
		t.Fatalf("unexpected args %v", svc.genArgs)
	}
}

func TestGenerateRequiresMessage(t *testing.T) {
	resp := postJSON(t, setupRouter(&fakeService{}), "/generate", map[string]string{"message": "  "})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
