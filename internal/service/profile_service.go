package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sotto-note/internal/event"
	"sotto-note/internal/metrics"
	"sotto-note/internal/model"
	"sotto-note/pkg/apierror"
)

const defaultDisplayName = "Friend"

type ProfileService struct {
	repo    profileRepository
	admins  map[string]struct{}
	bus     event.Bus
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewProfileService(repo profileRepository, adminUserIDs []string, bus event.Bus, m *metrics.Metrics) *ProfileService {
	admins := make(map[string]struct{}, len(adminUserIDs))
	for _, id := range adminUserIDs {
		admins[id] = struct{}{}
	}

	return &ProfileService{
		repo:    repo,
		admins:  admins,
		bus:     bus,
		metrics: m,
		now:     time.Now,
	}
}

// Ensure returns the user's profile, creating it on first sight. Concurrent
// callers for the same user converge on a single row.
func (s *ProfileService) Ensure(ctx context.Context, user model.AuthUser) (model.Profile, error) {
	if strings.TrimSpace(user.ID) == "" {
		return model.Profile{}, apierror.BadRequest("user id is required", "")
	}

	p, err := s.repo.FindByUserID(ctx, user.ID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, model.ErrProfileNotFound) {
		return model.Profile{}, fmt.Errorf("ensure profile: %w", err)
	}

	now := s.now().UTC()
	created, err := s.repo.Insert(ctx, model.Profile{
		UserID:    user.ID,
		Name:      DisplayName(user),
		Role:      model.RoleFree,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if errors.Is(err, model.ErrProfileExists) {
		p, err := s.repo.FindByUserID(ctx, user.ID)
		if err != nil {
			return model.Profile{}, fmt.Errorf("ensure profile after conflict: %w", err)
		}
		return p, nil
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("ensure profile: %w", err)
	}

	s.metrics.ProfileCreated()
	event.Publish(s.bus, event.TypeProfileCreated, created.UserID, created)
	slog.Info("profile created", "user_id", created.UserID)

	return created, nil
}

func (s *ProfileService) Get(ctx context.Context, userID string) (model.Profile, error) {
	p, err := s.repo.FindByUserID(ctx, userID)
	if errors.Is(err, model.ErrProfileNotFound) {
		return model.Profile{}, apierror.NotFound("profile not found", userID)
	}
	return p, err
}

// IsAdmin honours both the stored role and the configured allow-list.
func (s *ProfileService) IsAdmin(p model.Profile) bool {
	if p.Role == model.RoleAdmin {
		return true
	}
	_, ok := s.admins[p.UserID]
	return ok
}

func (s *ProfileService) List(ctx context.Context, page int, limit int) ([]model.Profile, model.Meta, error) {
	return s.repo.List(ctx, page, limit)
}

func (s *ProfileService) SetRole(ctx context.Context, actorID string, userID string, role string) (model.Profile, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if !model.ValidRole(role) {
		return model.Profile{}, apierror.BadRequest("invalid role", role)
	}

	if actorID == userID && role != model.RoleAdmin {
		return model.Profile{}, apierror.New("FORBIDDEN", "admins cannot demote themselves", "", http.StatusForbidden)
	}

	p, err := s.repo.UpdateRole(ctx, userID, role)
	if errors.Is(err, model.ErrProfileNotFound) {
		return model.Profile{}, apierror.NotFound("profile not found", userID)
	}
	if err != nil {
		return model.Profile{}, err
	}

	event.Publish(s.bus, event.TypeProfileUpdated, p.UserID, p)
	slog.Info("profile role changed", "user_id", p.UserID, "role", p.Role, "actor_id", actorID)

	return p, nil
}

// DisplayName seeds a new profile's name from provider metadata, falling back
// to the local part of the email address.
func DisplayName(user model.AuthUser) string {
	for _, key := range []string{"name", "full_name"} {
		if v, ok := user.Metadata[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}

	if local, _, ok := strings.Cut(user.Email, "@"); ok && strings.TrimSpace(local) != "" {
		return strings.TrimSpace(local)
	}

	return defaultDisplayName
}
