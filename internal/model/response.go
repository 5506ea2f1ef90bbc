package model

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *Meta     `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// RefreshResponse is the body of a successful POST /auth/refresh.
type RefreshResponse struct {
	User      AuthUser `json:"user"`
	Refreshed bool     `json:"refreshed"`
}

// PlainError is the bare {"error": ...} body used by the session endpoints.
type PlainError struct {
	Error string `json:"error"`
	Email string `json:"email,omitempty"`
}

// UserState is what the browser mirror is seeded with.
type UserState struct {
	User        AuthUser     `json:"user"`
	Profile     Profile      `json:"profile"`
	AIUsageInfo *AIUsageInfo `json:"aiUsageInfo"`
}
