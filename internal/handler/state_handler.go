package handler

import (
	"net/http"

	"sotto-note/internal/cache"
	"sotto-note/internal/middleware"
	"sotto-note/internal/model"
)

// StateHandler serves the per-user state the browser mirror is seeded with.
type StateHandler struct {
	state *cache.UserState
}

func NewStateHandler(state *cache.UserState) *StateHandler {
	return &StateHandler{state: state}
}

// Dashboard is the authenticated loader; it returns the bare state.
func (h *StateHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	state, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *StateHandler) Me(w http.ResponseWriter, r *http.Request) {
	state, ok := h.load(w, r)
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, state, nil)
}

func (h *StateHandler) AIUsage(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	profile, err := h.state.Profile(r.Context(), *user)
	if err != nil {
		writeError(w, err)
		return
	}

	usage, err := h.state.Usage(r.Context(), *user, profile)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, usage, nil)
}

func (h *StateHandler) load(w http.ResponseWriter, r *http.Request) (model.UserState, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return model.UserState{}, false
	}

	state, err := h.state.State(r.Context(), *user)
	if err != nil {
		writeError(w, err)
		return model.UserState{}, false
	}
	return state, true
}
