package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/happymac/backend/internal/model/persona"
	"github.com/zhouzirui/happymac/backend/pkg/utils"
)

// Handler serves persona display data.
type Handler struct {
	personas persona.Store
}

// New returns a persona handler over personas.
func New(personas persona.Store) *Handler {
	return &Handler{personas: personas}
}

// RegisterRoutes mounts the persona routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/persona", h.handleDefault)
	r.Get("/personas", h.handleList)
	r.Get("/personas/{id}", h.handleGet)
}

func (h *Handler) handleDefault(w http.ResponseWriter, r *http.Request) {
	p, ok := h.personas.FindByID(persona.DefaultID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.personas.List())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := h.personas.FindByID(chi.URLParam(r, "id"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}
