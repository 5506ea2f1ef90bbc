// Package token reads JWT claims without verifying them. The results are only
// good for scheduling decisions such as "refresh before this expires"; the auth
// provider remains the only authority on whether a token is valid.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoExpiry = errors.New("token has no exp claim")

var parser = jwt.NewParser(jwt.WithPaddingAllowed())

// ExpiresAt decodes the payload segment of tok and returns its exp claim.
func ExpiresAt(tok string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tok, claims); err != nil {
		return time.Time{}, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}

	return exp.Time, nil
}

// IsExpiringSoon reports whether exp - buffer < now. Anything that cannot be
// decoded counts as expiring.
func IsExpiringSoon(tok string, buffer time.Duration, now time.Time) bool {
	exp, err := ExpiresAt(tok)
	if err != nil {
		return true
	}

	return exp.Unix()-int64(buffer/time.Second) < now.Unix()
}
