package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"sotto-note/internal/cache"
	"sotto-note/internal/middleware"
	"sotto-note/internal/model"
	"sotto-note/internal/service"
)

type JournalHandler struct {
	journal    *service.JournalService
	reflection *service.ReflectionService
	state      *cache.UserState
}

func NewJournalHandler(journal *service.JournalService, reflection *service.ReflectionService, state *cache.UserState) *JournalHandler {
	return &JournalHandler{
		journal:    journal,
		reflection: reflection,
		state:      state,
	}
}

func (h *JournalHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	query := model.EntryQuery{
		Mood:  model.Mood(r.URL.Query().Get("mood")),
		Page:  queryInt(r, "page", 1),
		Limit: queryInt(r, "limit", 20),
	}

	entries, meta, err := h.journal.List(r.Context(), user.ID, query)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, entries, &meta)
}

func (h *JournalHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	var payload model.CreateEntryRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.journal.Create(r.Context(), user.ID, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, entry, nil)
}

func (h *JournalHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	entry, err := h.journal.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, entry, nil)
}

func (h *JournalHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	var payload model.UpdateEntryRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.journal.Update(r.Context(), user.ID, chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, entry, nil)
}

func (h *JournalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	if err := h.journal.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": true}, nil)
}

// Reflect asks the model for a reply to the entry. Admins skip the quota.
func (h *JournalHandler) Reflect(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	unlimited, err := h.state.IsAdmin(r.Context(), *user)
	if err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.reflection.Reflect(r.Context(), user.ID, chi.URLParam(r, "id"), unlimited)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, entry, nil)
}
