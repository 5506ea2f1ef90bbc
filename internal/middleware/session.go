package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"sotto-note/internal/model"
)

type sessionValidator interface {
	Validate(ctx context.Context, r *http.Request) model.SessionOutcome
}

type adminChecker interface {
	IsAdmin(ctx context.Context, user model.AuthUser) (bool, error)
}

type contextKey string

const sessionContextKey contextKey = "session_outcome"

type SessionMiddleware struct {
	validator sessionValidator
	loginPath string
}

func NewSessionMiddleware(validator sessionValidator, loginPath string) *SessionMiddleware {
	if loginPath == "" {
		loginPath = "/login"
	}
	return &SessionMiddleware{validator: validator, loginPath: loginPath}
}

// resolve validates at most once per request, even when both OptionalUser and
// RequireUser are mounted on the same route.
func (m *SessionMiddleware) resolve(w http.ResponseWriter, r *http.Request) (model.SessionOutcome, *http.Request) {
	if outcome, ok := OutcomeFromContext(r.Context()); ok {
		return outcome, r
	}

	outcome := m.validator.Validate(r.Context(), r)
	outcome.Apply(w)
	annotate(r.Context(), outcome)

	return outcome, r.WithContext(context.WithValue(r.Context(), sessionContextKey, outcome))
}

// OptionalUser attaches whatever the validator resolved and always continues.
func (m *SessionMiddleware) OptionalUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, r = m.resolve(w, r)
		next.ServeHTTP(w, r)
	})
}

// RequireUser redirects to the login page when no user was resolved. Any
// clearing cookie from the validator rides along with the redirect.
func (m *SessionMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outcome, r := m.resolve(w, r)
		if !outcome.Authenticated() {
			http.Redirect(w, r, m.loginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin must be mounted after RequireUser.
func RequireAdmin(checker adminChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}

			admin, err := checker.IsAdmin(r.Context(), *user)
			if err != nil {
				slog.Error("admin check failed", "user_id", user.ID, "error", err)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected server error")
				return
			}
			if !admin {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func OutcomeFromContext(ctx context.Context) (model.SessionOutcome, bool) {
	outcome, ok := ctx.Value(sessionContextKey).(model.SessionOutcome)
	return outcome, ok
}

func UserFromContext(ctx context.Context) (*model.AuthUser, bool) {
	outcome, ok := OutcomeFromContext(ctx)
	if !ok || !outcome.Authenticated() {
		return nil, false
	}
	return outcome.User, true
}

// WithUser returns a context carrying an authenticated outcome for user.
func WithUser(ctx context.Context, user model.AuthUser) context.Context {
	return context.WithValue(ctx, sessionContextKey, model.SessionOutcome{
		State: model.StateAuthenticated,
		User:  &user,
	})
}
