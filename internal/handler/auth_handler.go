package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"sotto-note/internal/middleware"
	"sotto-note/internal/model"
	"sotto-note/internal/service"
	"sotto-note/internal/session"
	"sotto-note/pkg/apierror"
)

type sessionValidator interface {
	Validate(ctx context.Context, r *http.Request) model.SessionOutcome
}

const authFailedMessage = "Authentication failed"

type AuthHandler struct {
	auth            *service.AuthService
	sessions        sessionValidator
	defaultRedirect string
	loginPath       string
}

func NewAuthHandler(auth *service.AuthService, sessions sessionValidator, defaultRedirect string) *AuthHandler {
	return &AuthHandler{
		auth:            auth,
		sessions:        sessions,
		defaultRedirect: defaultRedirect,
		loginPath:       "/login",
	}
}

// LoginPage expects OptionalUser to have run.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserFromContext(r.Context()); ok {
		http.Redirect(w, r, h.defaultRedirect, http.StatusFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email, password, err := readCredentials(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.PlainError{Error: "Invalid request"})
		return
	}

	user, cookie, err := h.auth.SignIn(r.Context(), email, password)
	if err != nil {
		status, message := loginFailure(err)
		writeJSON(w, status, model.PlainError{Error: message, Email: email})
		return
	}

	http.SetCookie(w, cookie)
	slog.Debug("login redirect", "user_id", user.ID, "to", h.defaultRedirect)
	http.Redirect(w, r, h.defaultRedirect, http.StatusFound)
}

func loginFailure(err error) (int, string) {
	if errors.Is(err, model.ErrInvalidCredentials) {
		return http.StatusUnauthorized, "Invalid email or password"
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatus < http.StatusInternalServerError {
		return apiErr.HTTPStatus, apiErr.Message
	}

	slog.Error("login failed", "error", err)
	return http.StatusInternalServerError, "Something went wrong. Please try again."
}

// readCredentials accepts a classic form post or a JSON body.
func readCredentials(w http.ResponseWriter, r *http.Request) (string, string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var payload struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeJSON(w, r, &payload); err != nil {
			return "", "", err
		}
		return strings.TrimSpace(payload.Email), payload.Password, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(r.PostForm.Get("email")), r.PostForm.Get("password"), nil
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.auth.SignOut(r.Context(), r))
	http.Redirect(w, r, h.loginPath, http.StatusFound)
}

// Refresh is polled by the browser to keep the session alive.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	outcome := h.sessions.Validate(r.Context(), r)
	outcome.Apply(w)

	if !outcome.Authenticated() {
		if len(outcome.Cookies) == 0 && hasSessionCookie(r) {
			http.SetCookie(w, h.auth.ClearCookie())
		}
		writeJSON(w, http.StatusUnauthorized, model.PlainError{Error: authFailedMessage})
		return
	}

	writeJSON(w, http.StatusOK, model.RefreshResponse{User: *outcome.User, Refreshed: true})
}

func hasSessionCookie(r *http.Request) bool {
	_, err := r.Cookie(session.CookieName)
	return err == nil
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, apierror.New("METHOD_NOT_ALLOWED", "method not allowed", r.Method, http.StatusMethodNotAllowed))
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, apierror.NotFound("route not found", r.URL.Path))
}
