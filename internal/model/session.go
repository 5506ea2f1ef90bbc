package model

import "net/http"

type SessionState string

const (
	StateAnonymous     SessionState = "anonymous"
	StateRefreshing    SessionState = "refreshing"
	StateAuthenticated SessionState = "authenticated"
	StateInvalid       SessionState = "invalid"
)

// SessionOutcome is the result of validating one request. Cookies must be
// attached to whatever response is sent, including redirects.
type SessionOutcome struct {
	State   SessionState
	User    *AuthUser
	Session *AuthSession
	Cookies []*http.Cookie
}

func (o SessionOutcome) Authenticated() bool {
	return o.State == StateAuthenticated && o.User != nil
}

// Apply writes the outcome's Set-Cookie headers.
func (o SessionOutcome) Apply(w http.ResponseWriter) {
	for _, c := range o.Cookies {
		http.SetCookie(w, c)
	}
}
