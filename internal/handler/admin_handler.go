package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sotto-note/internal/middleware"
	"sotto-note/internal/model"
	"sotto-note/internal/service"
	"sotto-note/pkg/apierror"
)

type identityLookup interface {
	AdminGetUser(ctx context.Context, userID string) (*model.AuthUser, error)
}

// AdminProfile joins a stored profile with the provider's view of the user.
type AdminProfile struct {
	Profile model.Profile   `json:"profile"`
	User    *model.AuthUser `json:"user,omitempty"`
}

type AdminHandler struct {
	profiles   *service.ProfileService
	identities identityLookup
}

// NewAdminHandler accepts a nil lookup; profiles are then returned without
// provider identity.
func NewAdminHandler(profiles *service.ProfileService, identities identityLookup) *AdminHandler {
	return &AdminHandler{profiles: profiles, identities: identities}
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles, meta, err := h.profiles.List(r.Context(), queryInt(r, "page", 1), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, profiles, &meta)
}

func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		writeError(w, apierror.New("BAD_REQUEST", "user id is required", "user_id", http.StatusBadRequest))
		return
	}

	profile, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := AdminProfile{Profile: profile}
	if h.identities != nil {
		user, err := h.identities.AdminGetUser(r.Context(), userID)
		if err != nil && !errors.Is(err, model.ErrProfileNotFound) {
			slog.Warn("identity lookup failed", "user_id", userID, "error", err)
		}
		out.User = user
	}

	writeSuccess(w, http.StatusOK, out, nil)
}

func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		writeError(w, apierror.New("BAD_REQUEST", "user id is required", "user_id", http.StatusBadRequest))
		return
	}

	var payload model.SetRoleRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	profile, err := h.profiles.SetRole(r.Context(), actor.ID, userID, payload.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, profile, nil)
}
