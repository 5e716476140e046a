package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	chathandler "github.com/zhouzirui/happymac/backend/internal/handler/chat"
	"github.com/zhouzirui/happymac/backend/internal/logging"
	"github.com/zhouzirui/happymac/backend/internal/model/chat"
	"github.com/zhouzirui/happymac/backend/internal/model/speech"
	"github.com/zhouzirui/happymac/backend/internal/service/ai"
)

type scriptedService struct {
	chunks   []string
	failWith string
	setupErr error
}

func (s *scriptedService) StreamChat(_ context.Context, _ []chat.Message, h chat.StreamHandlers) error {
	if s.setupErr != nil {
		return s.setupErr
	}
	for _, c := range s.chunks {
		h.Delta(c)
	}
	if s.failWith != "" {
		h.Fail(s.failWith)
		return nil
	}
	h.Done()
	return nil
}

func (s *scriptedService) GenerateResponse(_ context.Context, msg, _ string) string {
	return "echo: " + msg
}

func newBackend(t *testing.T, svc *scriptedService) *Client {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/api", func(api chi.Router) {
		chathandler.New(svc, logging.Discard()).RegisterRoutes(api)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", nil, logging.Discard())
}

type recorder struct {
	deltas []string
	done   int
	errors []string
}

func (r *recorder) handlers() chat.StreamHandlers {
	return chat.StreamHandlers{
		OnDelta: func(s string) { r.deltas = append(r.deltas, s) },
		OnDone:  func() { r.done++ },
		OnError: func(m string) { r.errors = append(r.errors, m) },
	}
}

var history = []chat.Message{chat.UserMessage("Hi")}

func TestStreamChatDeliversDeltas(t *testing.T) {
	c := newBackend(t, &scriptedService{chunks: []string{"Hello", "\nthere", " 😊"}})

	rec := &recorder{}
	require.NoError(t, c.StreamChat(context.Background(), history, rec.handlers()))
	require.Equal(t, []string{"Hello", "\nthere", " 😊"}, rec.deltas)
	require.Equal(t, 1, rec.done)
	require.Empty(t, rec.errors)
}

func TestStreamChatReportsMidStreamError(t *testing.T) {
	c := newBackend(t, &scriptedService{chunks: []string{"part"}, failWith: "upstream timeout"})

	rec := &recorder{}
	require.NoError(t, c.StreamChat(context.Background(), history, rec.handlers()))
	require.Equal(t, []string{"part"}, rec.deltas)
	require.Equal(t, []string{"upstream timeout"}, rec.errors)
	require.Zero(t, rec.done)
}

func TestStreamChatReturnsSetupFailure(t *testing.T) {
	c := newBackend(t, &scriptedService{setupErr: ai.ErrClosed})

	rec := &recorder{}
	err := c.StreamChat(context.Background(), history, rec.handlers())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	require.Contains(t, apiErr.Message, "closed")
	require.Zero(t, rec.done)
	require.Empty(t, rec.errors)
}

func TestStreamChatUnreachableBackend(t *testing.T) {
	c := New("http://127.0.0.1:1", nil, logging.Discard())
	require.Error(t, c.StreamChat(context.Background(), history, chat.StreamHandlers{}))
}

func TestGenerate(t *testing.T) {
	c := newBackend(t, &scriptedService{})

	text, err := c.Generate(context.Background(), "ping", "")
	require.NoError(t, err)
	require.Equal(t, "echo: ping", text)
}

func TestVoicesAndSynthesize(t *testing.T) {
	var gotBody string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/voices", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"voices":[{"id":"amy","name":"Amy","lang":"en-US"}],"lang":"en-US"}`))
	})
	mux.HandleFunc("/api/speech/synthesize", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("X-Voice", "amy")
		w.Header().Set("X-Audio-Duration", "1200")
		w.Write([]byte("ID3"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, nil, logging.Discard())

	voices, err := c.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 1)
	require.Equal(t, "Amy", voices[0].Name)

	resp, err := c.SynthesizeSpeech(context.Background(), &speech.TTSRequest{Text: "Hi", Voice: "amy", Speed: 1.2})
	require.NoError(t, err)
	require.Equal(t, []byte("ID3"), resp.AudioData)
	require.Equal(t, "mp3", resp.Format)
	require.Equal(t, "amy", resp.Voice)
	require.Equal(t, int64(1200), resp.Duration)
	require.Contains(t, gotBody, `"text":"Hi"`)
	require.Contains(t, gotBody, `"voice":"amy"`)
}

func TestFormatFromContentType(t *testing.T) {
	require.Equal(t, "mp3", formatFromContentType("audio/mpeg"))
	require.Equal(t, "ogg", formatFromContentType("audio/ogg"))
	require.Equal(t, "", formatFromContentType("application/json"))
}
