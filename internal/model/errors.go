package model

import "errors"

var (
	// Identity and credential errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrRefreshRejected = errors.New("refresh token rejected")

	// Profile errors
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")

	// Journal errors
	ErrEntryNotFound = errors.New("journal entry not found")
	ErrInvalidMood   = errors.New("invalid mood")

	// AI reflection errors
	ErrAIQuotaExceeded = errors.New("ai usage quota exceeded")
	ErrAIUnavailable   = errors.New("ai reflection unavailable")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
