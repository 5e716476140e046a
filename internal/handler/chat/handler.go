package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tmaxmax/go-sse"

	"github.com/zhouzirui/happymac/backend/internal/logging"
	"github.com/zhouzirui/happymac/backend/internal/model/chat"
	aiService "github.com/zhouzirui/happymac/backend/internal/service/ai"
	"github.com/zhouzirui/happymac/backend/pkg/utils"
)

// Service is the text generation the handler exposes.
type Service interface {
	StreamChat(ctx context.Context, messages []chat.Message, handlers chat.StreamHandlers) error
	GenerateResponse(ctx context.Context, userMessage, historyText string) string
}

// Handler serves the chat endpoints.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

// New returns a chat handler backed by svc.
func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logging.Module(logger, "handler.chat")}
}

// RegisterRoutes mounts the chat routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/generate", h.handleGenerate)
}

type chatRequest struct {
	Messages []chat.Message `json:"messages"`
}

type generateRequest struct {
	Message string `json:"message"`
	History string `json:"history"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// handleChat streams one assistant reply as delta events followed by done
// or error.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := chat.Validate(req.Messages); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	stream := utils.NewSSEWriter(w, r)
	send := func(typ sse.EventType, payload any) {
		if err := stream.Send(typ, payload); err != nil {
			h.logger.Warn("failed to write event", slog.Any("err", err))
		}
	}

	err := h.svc.StreamChat(r.Context(), req.Messages, chat.StreamHandlers{
		OnDelta: func(chunk string) { send(utils.EventDelta, utils.DeltaPayload{Content: chunk}) },
		OnDone:  func() { send(utils.EventDone, struct{}{}) },
		OnError: func(message string) { send(utils.EventError, utils.ErrorPayload{Error: message}) },
	})
	if err == nil {
		return
	}

	h.logger.Error("chat stream failed", slog.Any("err", err))
	if stream.Started() {
		send(utils.EventError, utils.ErrorPayload{Error: err.Error()})
		return
	}
	utils.RespondError(w, statusFor(err), err.Error())
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	text := h.svc.GenerateResponse(r.Context(), req.Message, req.History)
	utils.RespondJSON(w, http.StatusOK, generateResponse{Text: text})
}

func statusFor(err error) int {
	var roleErr *chat.InvalidRoleError
	switch {
	case errors.Is(err, chat.ErrEmptyConversation), errors.As(err, &roleErr):
		return http.StatusBadRequest
	case errors.Is(err, aiService.ErrClosed), errors.Is(err, aiService.ErrDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
