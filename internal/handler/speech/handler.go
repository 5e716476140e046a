package speech

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zhouzirui/happymac/backend/internal/logging"
	"github.com/zhouzirui/happymac/backend/internal/model/speech"
	"github.com/zhouzirui/happymac/backend/internal/service/voice"
	"github.com/zhouzirui/happymac/backend/pkg/utils"
)

// SpeechService abstracts the speech backend so handlers can be tested with
// fakes.
type SpeechService interface {
	Enabled() bool
	Voices(ctx context.Context) ([]voice.Info, error)
	SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
	TranscribeBuffer(ctx context.Context, sessionID string, audio []byte, format, language string) (*speech.ASRResponse, error)
}

// Handler serves the voice catalog and the speech endpoints.
type Handler struct {
	speechSvc SpeechService
	logger    *slog.Logger
}

// New returns a speech handler. A nil speechSvc registers placeholder routes
// that answer 501.
func New(speechSvc SpeechService, logger *slog.Logger) *Handler {
	return &Handler{speechSvc: speechSvc, logger: logging.Module(logger, "handler.speech")}
}

// RegisterRoutes mounts /voices and /speech/* on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	if h.speechSvc == nil {
		unavailable := func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondError(w, http.StatusNotImplemented, "speech service not available")
		}
		r.Get("/voices", unavailable)
		r.Route("/speech", func(sr chi.Router) {
			sr.Post("/synthesize", unavailable)
			sr.Post("/transcribe", unavailable)
			sr.Get("/health", h.handleHealth)
		})
		return
	}

	r.Get("/voices", h.handleVoices)
	r.Route("/speech", func(sr chi.Router) {
		sr.Post("/synthesize", h.handleSynthesize)
		sr.Post("/transcribe", h.handleTranscribe)
		sr.Get("/health", h.handleHealth)
	})
}

type voicesResponse struct {
	Voices   []voice.Info `json:"voices"`
	Selected *voice.Info  `json:"selected,omitempty"`
	Lang     string       `json:"lang"`
}

type synthesizeRequest struct {
	SessionID string  `json:"sessionId"`
	Text      string  `json:"text"`
	Voice     string  `json:"voice"`
	Lang      string  `json:"lang"`
	Rate      float32 `json:"rate"`
	Pitch     float32 `json:"pitch"`
	Volume    float32 `json:"volume"`
}

type transcribeResponse struct {
	SessionID  string  `json:"sessionId"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func (h *Handler) handleVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := h.speechSvc.Voices(r.Context())
	if err != nil {
		h.logger.Error("voice catalog failed", slog.Any("err", err))
		utils.RespondError(w, http.StatusInternalServerError, "voice catalog unavailable")
		return
	}

	resp := voicesResponse{Voices: voices, Lang: voice.FallbackLang}
	if v, ok := voice.SelectVoice(voices); ok {
		resp.Selected = &v
		resp.Lang = v.Lang
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Rate < 0 || req.Pitch < 0 || req.Volume < 0 {
		utils.RespondError(w, http.StatusBadRequest, "rate, pitch and volume must not be negative")
		return
	}

	ttsReq := &speech.TTSRequest{
		SessionID: req.SessionID,
		Text:      req.Text,
		Voice:     strings.TrimSpace(req.Voice),
		Speed:     req.Rate,
		Pitch:     req.Pitch,
		Volume:    req.Volume,
		Language:  strings.TrimSpace(req.Lang),
		Format:    "mp3",
	}
	if ttsReq.Voice == "" {
		h.applySelectedVoice(r.Context(), ttsReq)
	}
	if ttsReq.SessionID == "" {
		ttsReq.SessionID = uuid.NewString()
	}

	resp, err := h.speechSvc.SynthesizeSpeech(r.Context(), ttsReq)
	if err != nil {
		h.logger.Error("tts failed", slog.Any("err", err))
		utils.RespondError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}
	if len(resp.AudioData) == 0 {
		utils.RespondError(w, http.StatusBadGateway, "speech synthesis returned no audio")
		return
	}

	format := resp.Format
	if format == "" || format == "mp3" {
		format = "mpeg"
	}
	w.Header().Set("Content-Type", "audio/"+format)
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.AudioData)))
	if resp.Voice != "" {
		w.Header().Set("X-Voice", resp.Voice)
	}
	if resp.Duration > 0 {
		w.Header().Set("X-Audio-Duration", strconv.FormatInt(resp.Duration, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.AudioData); err != nil {
		h.logger.Warn("failed to write audio response", slog.Any("err", err))
	}
}

// applySelectedVoice fills the voice the catalog selection would pick, or
// forces the fallback locale when none qualifies.
func (h *Handler) applySelectedVoice(ctx context.Context, req *speech.TTSRequest) {
	voices, err := h.speechSvc.Voices(ctx)
	if err != nil {
		h.logger.Warn("voice catalog failed", slog.Any("err", err))
	}
	if v, ok := voice.SelectVoice(voices); ok {
		req.Voice = v.ID
		if req.Language == "" {
			req.Language = v.Lang
		}
		return
	}
	if req.Language == "" {
		req.Language = voice.FallbackLang
	}
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio file")
		return
	}
	if len(audio) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "audio file is empty")
		return
	}

	sessionID := r.FormValue("sessionId")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	language := r.FormValue("language")
	if language == "" {
		language = voice.FallbackLang
	}

	resp, err := h.speechSvc.TranscribeBuffer(r.Context(), sessionID, audio, inferAudioFormat(header.Filename), language)
	if err != nil {
		h.logger.Error("asr failed", slog.Any("err", err))
		utils.RespondError(w, http.StatusBadGateway, "speech recognition failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, transcribeResponse{
		SessionID:  sessionID,
		Text:       strings.TrimSpace(resp.Text),
		Confidence: resp.Confidence,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	enabled := h.speechSvc != nil && h.speechSvc.Enabled()
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "speech",
		"enabled": enabled,
	})
}

// inferAudioFormat guesses the container from the upload's file name.
func inferAudioFormat(filename string) string {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".mp3":
		return "mp3"
	case ".ogg", ".opus":
		return "ogg"
	case ".pcm", ".raw":
		return "pcm"
	default:
		return "wav"
	}
}
