package model

import "time"

// AuthUser is the identity returned by the auth provider.
type AuthUser struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AuthSession is minted by the auth provider on sign-in or refresh. It lives
// for a single request and is never persisted as-is.
type AuthSession struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresAt    int64    `json:"expires_at"`
	User         AuthUser `json:"user"`
}

func (s *AuthSession) ExpiresTime() time.Time {
	return time.Unix(s.ExpiresAt, 0).UTC()
}

// SessionRecord is the cookie payload. AccessToken is only kept when the
// near-expiry refresh policy is active.
type SessionRecord struct {
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
	UserEmail    string `json:"user_email"`
	ExpiresAt    int64  `json:"expires_at"`
	AccessToken  string `json:"access_token,omitempty"`
}

// Complete reports whether the record carries enough to attempt resolution.
func (r *SessionRecord) Complete() bool {
	return r != nil && r.RefreshToken != "" && r.UserID != ""
}

// RecordFromSession projects a provider session onto its durable cookie form.
func RecordFromSession(s *AuthSession, keepAccessToken bool) SessionRecord {
	rec := SessionRecord{
		RefreshToken: s.RefreshToken,
		UserID:       s.User.ID,
		UserEmail:    s.User.Email,
		ExpiresAt:    s.ExpiresAt,
	}
	if keepAccessToken {
		rec.AccessToken = s.AccessToken
	}
	return rec
}
