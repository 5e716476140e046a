package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/happymac/backend/internal/logging"
	"github.com/zhouzirui/happymac/backend/internal/model/persona"
	speechmodel "github.com/zhouzirui/happymac/backend/internal/model/speech"
	"github.com/zhouzirui/happymac/backend/internal/service/session"
	speechsvc "github.com/zhouzirui/happymac/backend/internal/service/speech"
	"github.com/zhouzirui/happymac/backend/internal/service/voice"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second

	catalogTimeout = 5 * time.Second
)

// SpeechService is the cloud speech backend a page can use.
type SpeechService interface {
	Enabled() bool
	Voices(ctx context.Context) ([]voice.Info, error)
	SynthesizeSpeech(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error)
	TranscribeBuffer(ctx context.Context, sessionID string, audio []byte, format, language string) (*speechmodel.ASRResponse, error)
}

// Options configures the voice behaviour of every page.
type Options struct {
	Rate         float64
	Pitch        float64
	StripEmoji   bool
	VoiceEnabled bool
	// Lang is the recognition locale.
	Lang string
}

// Handler runs one session controller per websocket connection. The
// connection is the page: its state is dropped when it closes.
type Handler struct {
	chat     session.ChatStreamer
	speech   SpeechService
	persona  persona.Persona
	opts     Options
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New returns a live page handler. speechSvc may be nil, in which case
// voice output and speech input report themselves unsupported.
func New(chat session.ChatStreamer, speechSvc SpeechService, p persona.Persona, opts Options, logger *slog.Logger) *Handler {
	if opts.Lang == "" {
		opts.Lang = voice.FallbackLang
	}
	return &Handler{
		chat:    chat,
		speech:  speechSvc,
		persona: p,
		opts:    opts,
		logger:  logging.Module(logger, "handler.live"),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket endpoint on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type textPayload struct {
	Text string `json:"text"`
}

type audioPayload struct {
	// AudioData is base64 in JSON.
	AudioData []byte `json:"audioData"`
	IsFinal   bool   `json:"isFinal"`
}

type listenPayload struct {
	Listening bool `json:"listening"`
}

type chatPayload struct {
	Visible *bool `json:"visible,omitempty"`
}

type voicesPayload struct {
	Voices []voice.Info `json:"voices"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Mascot is the presentation input of the face.
type Mascot struct {
	IsThinking bool `json:"isThinking"`
	IsTalking  bool `json:"isTalking"`
}

// PageState is the full render state pushed to the page.
type PageState struct {
	session.State
	IsListening bool   `json:"isListening"`
	Mascot      Mascot `json:"mascot"`
}

type ttsPayload struct {
	AudioData string `json:"audioData"`
	Format    string `json:"format"`
	Voice     string `json:"voice,omitempty"`
	Duration  int64  `json:"duration,omitempty"`
	// BrowserVoice is the page voice matching the reply, for pages that
	// prefer to speak the text locally.
	BrowserVoice *voice.Info `json:"browserVoice,omitempty"`
}

type helloPayload struct {
	ConnectionID string          `json:"connectionId"`
	Persona      persona.Persona `json:"persona"`
	SpeechInput  bool            `json:"speechInput"`
	SpeechOutput bool            `json:"speechOutput"`
}

// peer serializes writes to one connection.
type peer struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	logger *slog.Logger
}

func (p *peer) send(typ string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	msg := outgoingMessage{Type: typ, Data: data, Timestamp: time.Now().Unix()}
	if err := p.conn.WriteJSON(msg); err != nil {
		p.logger.Debug("write failed", slog.String("type", typ), slog.Any("err", err))
	}
}

func (p *peer) ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// page is the per-connection state.
type page struct {
	id         string
	peer       *peer
	controller *session.Controller
	synth      *voice.Synthesizer
	recognizer *voice.Recognizer
	// speakers is the cloud catalog the synthesizer picks from; browser
	// holds the page's own voices and never reaches the cloud engine.
	speakers *voice.Registry
	browser  *voice.Registry
	logger     *slog.Logger

	wg sync.WaitGroup
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	pg := h.newPage(ctx, conn)
	defer func() {
		cancel()
		pg.close()
	}()

	pg.logger.Info("page connected")
	defer pg.logger.Info("page disconnected")

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go h.pingLoop(ctx, pg.peer)

	pg.peer.send("hello", helloPayload{
		ConnectionID: pg.id,
		Persona:      h.persona,
		SpeechInput:  pg.recognizer.Supported(),
		SpeechOutput: pg.synth.Supported(),
	})
	pg.controller.Refresh()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				pg.logger.Warn("read error", slog.Any("err", err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		h.handleMessage(ctx, pg, &msg)
	}
}

func (h *Handler) newPage(ctx context.Context, conn *websocket.Conn) *page {
	id := uuid.NewString()
	logger := h.logger.With(slog.String("conn", id))
	pg := &page{
		id:       id,
		peer:     &peer{conn: conn, logger: logger},
		speakers: voice.NewRegistry(),
		browser:  voice.NewRegistry(),
		logger:   logger,
	}

	var synth speechsvc.Synthesizer
	var transcribe speechsvc.TranscriberFunc
	if h.speech != nil && h.speech.Enabled() {
		synth = h.speech
		transcribe = h.speech.TranscribeBuffer
	}

	engine := speechsvc.NewVoiceEngine(synth, speechsvc.AudioSinkFunc(pg.playRemote))
	pg.synth = voice.NewSynthesizer(engine, pg.speakers, logger)
	pg.recognizer = voice.NewRecognizer(speechsvc.NewTranscriberFunc(transcribe, id), voice.RecognizerOptions{
		Lang:   h.opts.Lang,
		Logger: logger,
	})

	voiceEnabled := h.opts.VoiceEnabled
	pg.controller = session.NewController(h.chat, pg.synth, session.NotifierFunc(func(t session.Toast) {
		pg.peer.send("toast", t)
	}), session.Options{
		StripEmoji:   h.opts.StripEmoji,
		Rate:         h.opts.Rate,
		Pitch:        h.opts.Pitch,
		VoiceEnabled: &voiceEnabled,
		Logger:       logger,
	})

	pg.controller.Subscribe(func(s session.State) {
		pg.peer.send("state", PageState{
			State:       s,
			IsListening: pg.recognizer.Listening(),
			Mascot:      Mascot{IsThinking: s.IsLoading, IsTalking: s.IsSpeaking},
		})
	})
	pg.synth.OnSpeakingChange(func(bool) { pg.controller.Refresh() })

	pg.recognizer.OnListeningChange(func(bool) { pg.controller.Refresh() })
	pg.recognizer.OnError(func(message string) {
		pg.controller.Notify(session.Toast{Title: "Speech recognition", Description: message, Variant: session.VariantDestructive})
	})
	pg.recognizer.OnResult(func(text string) {
		pg.peer.send("transcript", textPayload{Text: text})
		pg.goSend(ctx, text)
	})

	if h.speech != nil {
		refreshCtx, cancel := context.WithTimeout(ctx, catalogTimeout)
		if err := pg.speakers.Refresh(refreshCtx, h.speech); err != nil {
			logger.Warn("voice catalog refresh failed", slog.Any("err", err))
		}
		cancel()
	}

	return pg
}

// playRemote hands synthesized audio to the page and holds the utterance
// open for its estimated playback time.
func (pg *page) playRemote(ctx context.Context, audio *speechmodel.TTSResponse) error {
	payload := ttsPayload{
		AudioData: base64.StdEncoding.EncodeToString(audio.AudioData),
		Format:    audio.Format,
		Voice:     audio.Voice,
		Duration:  audio.Duration,
	}
	if v, ok := voice.SelectVoice(pg.browser.Voices()); ok {
		payload.BrowserVoice = &v
	}
	pg.peer.send("tts", payload)

	timer := time.NewTimer(audio.PlaybackTime())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// goSend runs SendMessage off the read loop so toggles stay responsive
// while a reply streams.
func (pg *page) goSend(ctx context.Context, text string) {
	pg.wg.Add(1)
	go func() {
		defer pg.wg.Done()
		pg.controller.SendMessage(ctx, text)
	}()
}

func (pg *page) close() {
	pg.recognizer.StopListening()
	pg.synth.Close()
	pg.wg.Wait()
}

func (h *Handler) handleMessage(ctx context.Context, pg *page, msg *inboundMessage) {
	switch msg.Type {
	case "text":
		var p textPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			h.sendError(pg, "invalid text payload")
			return
		}
		pg.goSend(ctx, p.Text)

	case "audio":
		var p audioPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			h.sendError(pg, "invalid audio payload")
			return
		}
		if len(p.AudioData) > 0 {
			if err := pg.recognizer.Feed(p.AudioData); err != nil {
				pg.logger.Debug("audio dropped", slog.Any("err", err))
				return
			}
		}
		if p.IsFinal {
			pg.wg.Add(1)
			go func() {
				defer pg.wg.Done()
				if err := pg.recognizer.Finish(ctx); err != nil {
					pg.logger.Debug("recognition ended without result", slog.Any("err", err))
				}
			}()
		}

	case "listen":
		var p listenPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			h.sendError(pg, "invalid listen payload")
			return
		}
		if p.Listening {
			pg.recognizer.StartListening()
		} else {
			pg.recognizer.StopListening()
		}

	case "toggleVoice":
		pg.controller.ToggleVoice()

	case "toggleChat":
		var p chatPayload
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &p); err != nil {
				h.sendError(pg, "invalid chat payload")
				return
			}
		}
		if p.Visible != nil {
			pg.controller.SetChatVisible(*p.Visible)
		} else {
			pg.controller.ToggleChatVisible()
		}

	case "voices":
		var p voicesPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			h.sendError(pg, "invalid voices payload")
			return
		}
		pg.browser.Replace(p.Voices)

	default:
		h.sendError(pg, "unsupported message type: "+msg.Type)
	}
}

func (h *Handler) sendError(pg *page, message string) {
	pg.peer.send("error", map[string]string{"message": message})
}

func (h *Handler) pingLoop(ctx context.Context, p *peer) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.ping(); err != nil {
				return
			}
		}
	}
}
