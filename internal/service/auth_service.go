package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sotto-note/internal/event"
	"sotto-note/internal/model"
	"sotto-note/internal/token"
	"sotto-note/pkg/apierror"
)

const signOutTimeout = 3 * time.Second

type AuthService struct {
	provider        authProvider
	store           credentialStore
	profiles        profileEnsurer
	bus             event.Bus
	keepAccessToken bool
	now             func() time.Time
}

func NewAuthService(provider authProvider, store credentialStore, profiles profileEnsurer, bus event.Bus, keepAccessToken bool) *AuthService {
	return &AuthService{
		provider:        provider,
		store:           store,
		profiles:        profiles,
		bus:             bus,
		keepAccessToken: keepAccessToken,
		now:             time.Now,
	}
}

// SignIn exchanges credentials for a session and returns the cookie that
// persists it. No cookie is produced on any failure.
func (s *AuthService) SignIn(ctx context.Context, email string, password string) (model.AuthUser, *http.Cookie, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.AuthUser{}, nil, apierror.New("BAD_REQUEST", "Email and password are required", "", http.StatusBadRequest)
	}

	sess, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			slog.Info("sign in rejected", "email", email)
			return model.AuthUser{}, nil, model.ErrInvalidCredentials
		}
		slog.Error("sign in failed", "email", email, "error", err)
		return model.AuthUser{}, nil, apierror.Wrap(err, "AUTH_UNAVAILABLE", "Sign in is temporarily unavailable", http.StatusServiceUnavailable)
	}

	if s.profiles != nil {
		if _, err := s.profiles.Ensure(ctx, sess.User); err != nil {
			return model.AuthUser{}, nil, err
		}
	}

	cookie, err := s.store.Write(model.RecordFromSession(sess, s.keepAccessToken))
	if err != nil {
		return model.AuthUser{}, nil, apierror.Wrap(err, "INTERNAL_ERROR", "Failed to persist session", http.StatusInternalServerError)
	}

	slog.Info("user signed in", "user_id", sess.User.ID)
	return sess.User, cookie, nil
}

// SignOut revokes the session remotely when it can and always returns the
// clearing cookie. Remote failures are logged, never returned.
func (s *AuthService) SignOut(ctx context.Context, r *http.Request) *http.Cookie {
	clear := s.store.Clear()

	rec := s.store.Read(r)
	if rec == nil || !rec.Complete() {
		return clear
	}

	ctx, cancel := context.WithTimeout(ctx, signOutTimeout)
	defer cancel()

	if err := s.revoke(ctx, rec); err != nil {
		slog.Warn("remote sign out failed", "user_id", rec.UserID, "error", err)
	}

	event.Publish(s.bus, event.TypeSessionEnded, rec.UserID, nil)
	slog.Info("user signed out", "user_id", rec.UserID)

	return clear
}

func (s *AuthService) revoke(ctx context.Context, rec *model.SessionRecord) error {
	accessToken := rec.AccessToken
	if accessToken == "" || token.IsExpiringSoon(accessToken, 0, s.now()) {
		// The cookie is about to be cleared, so spending the refresh token
		// to obtain a revocable access token costs nothing.
		sess, err := s.provider.Refresh(ctx, rec.RefreshToken)
		if err != nil {
			return err
		}
		accessToken = sess.AccessToken
	}

	return s.provider.SignOut(ctx, accessToken)
}

// ClearCookie expires the session cookie without touching the provider.
func (s *AuthService) ClearCookie() *http.Cookie {
	return s.store.Clear()
}
