package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"sotto-note/internal/config"
	"sotto-note/internal/metrics"
	"sotto-note/internal/model"
	"sotto-note/internal/token"
)

// SessionService resolves the session cookie of an incoming request into a
// user. It is stateless across requests; the cookie is the only storage.
type SessionService struct {
	store    credentialStore
	provider sessionRefresher
	policy   string
	buffer   time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewSessionService(store credentialStore, provider sessionRefresher, policy string, buffer time.Duration, m *metrics.Metrics) *SessionService {
	if policy == "" {
		policy = config.RefreshAlways
	}

	return &SessionService{
		store:    store,
		provider: provider,
		policy:   policy,
		buffer:   buffer,
		metrics:  m,
		now:      time.Now,
	}
}

// KeepsAccessToken reports whether records written under the current policy
// carry the access token.
func (s *SessionService) KeepsAccessToken() bool {
	return s.policy == config.RefreshNearExpiry
}

// Validate never returns an error. Provider failures, timeouts and write
// failures all end in StateInvalid with a clearing cookie.
func (s *SessionService) Validate(ctx context.Context, r *http.Request) model.SessionOutcome {
	outcome := s.validate(ctx, r)
	s.metrics.SessionOutcome(string(outcome.State))
	return outcome
}

func (s *SessionService) validate(ctx context.Context, r *http.Request) model.SessionOutcome {
	rec := s.store.Read(r)
	if rec == nil || !rec.Complete() {
		return model.SessionOutcome{State: model.StateAnonymous}
	}

	if s.policy == config.RefreshNearExpiry && rec.AccessToken != "" &&
		!token.IsExpiringSoon(rec.AccessToken, s.buffer, s.now()) {
		user := model.AuthUser{ID: rec.UserID, Email: rec.UserEmail}
		return model.SessionOutcome{
			State: model.StateAuthenticated,
			User:  &user,
			Session: &model.AuthSession{
				AccessToken:  rec.AccessToken,
				RefreshToken: rec.RefreshToken,
				ExpiresAt:    rec.ExpiresAt,
				User:         user,
			},
		}
	}

	// Refreshing: the stored refresh token is spent by this call.
	sess, err := s.provider.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		if errors.Is(err, model.ErrRefreshRejected) {
			slog.Info("session refresh rejected", "user_id", rec.UserID)
		} else {
			slog.Warn("session refresh failed", "user_id", rec.UserID, "error", err)
		}
		return s.invalid()
	}

	cookie, err := s.store.Write(model.RecordFromSession(sess, s.KeepsAccessToken()))
	if err != nil {
		slog.Error("failed to persist rotated session", "user_id", sess.User.ID, "error", err)
		return s.invalid()
	}

	user := sess.User
	slog.Debug("session rotated", "user_id", user.ID, "expires_at", sess.ExpiresTime())

	return model.SessionOutcome{
		State:   model.StateAuthenticated,
		User:    &user,
		Session: sess,
		Cookies: []*http.Cookie{cookie},
	}
}

func (s *SessionService) invalid() model.SessionOutcome {
	return model.SessionOutcome{
		State:   model.StateInvalid,
		Cookies: []*http.Cookie{s.store.Clear()},
	}
}
