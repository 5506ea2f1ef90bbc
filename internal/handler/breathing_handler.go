package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sotto-note/internal/service"
)

type BreathingHandler struct {
	service *service.BreathingService
}

func NewBreathingHandler(service *service.BreathingService) *BreathingHandler {
	return &BreathingHandler{service: service}
}

func (h *BreathingHandler) List(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, h.service.Patterns(), nil)
}

func (h *BreathingHandler) Get(w http.ResponseWriter, r *http.Request) {
	pattern, err := h.service.Pattern(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, pattern, nil)
}
