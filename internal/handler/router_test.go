package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zhouzirui/happymac/backend/internal/logging"
	"github.com/zhouzirui/happymac/backend/internal/model/chat"
	"github.com/zhouzirui/happymac/backend/internal/model/persona"
)

type stubChat struct{}

func (stubChat) StreamChat(_ context.Context, _ []chat.Message, h chat.StreamHandlers) error {
	h.Done()
	return nil
}

func (stubChat) GenerateResponse(context.Context, string, string) string { return "hi" }

func TestRouterWithoutAI(t *testing.T) {
	r := NewRouter(Deps{Personas: persona.NewMemoryStore(persona.Seed()), Logger: logging.Discard()})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{}`)))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/persona", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected persona 200, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected CORS header")
	}
}

func TestRouterWithAI(t *testing.T) {
	r := NewRouter(Deps{
		Personas: persona.NewMemoryStore(persona.Seed()),
		Chat:     stubChat{},
		Logger:   logging.Discard(),
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"message":"hey"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"text":"hi"`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}

	// plain GET without upgrade headers is rejected by the websocket upgrader
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/ws", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 from upgrader, got %d", rr.Code)
	}
}
