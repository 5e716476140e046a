package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/happymac/backend/internal/handler/chat"
	"github.com/zhouzirui/happymac/backend/internal/handler/live"
	"github.com/zhouzirui/happymac/backend/internal/handler/persona"
	"github.com/zhouzirui/happymac/backend/internal/handler/speech"
	middlewarePkg "github.com/zhouzirui/happymac/backend/internal/middleware"
	personaModel "github.com/zhouzirui/happymac/backend/internal/model/persona"
	"github.com/zhouzirui/happymac/backend/pkg/utils"
)

// Deps are the services the router exposes. Chat and Speech may be nil when
// their providers are not configured.
type Deps struct {
	Personas personaModel.Store
	Chat     chat.Service
	Speech   speech.SpeechService
	Live     live.Options
	Logger   *slog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		persona.New(deps.Personas).RegisterRoutes(api)
		speech.New(deps.Speech, deps.Logger).RegisterRoutes(api)

		if deps.Chat == nil {
			unavailable := func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "ai service unavailable")
			}
			api.Post("/chat", unavailable)
			api.Post("/generate", unavailable)
			api.Get("/ws", unavailable)
			return
		}

		chat.New(deps.Chat, deps.Logger).RegisterRoutes(api)

		live.New(deps.Chat, deps.Speech, personaModel.DefaultOf(deps.Personas), deps.Live, deps.Logger).RegisterRoutes(api)
	})

	return r
}
