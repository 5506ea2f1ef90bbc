package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/hkdf"

	"sotto-note/internal/model"
)

const (
	CookieName = "__session"
	MaxAge     = 30 * 24 * time.Hour

	keyInfo = "sotto-note session cookie v1"
)

var errMalformed = errors.New("malformed session cookie")

// envelope is what gets sealed; IssuedAt lets Open enforce MaxAge even when a
// client ignores the cookie's own expiry.
type envelope struct {
	Record   model.SessionRecord `json:"r"`
	IssuedAt int64               `json:"iat"`
}

// CookieStore keeps the session record in an encrypted, authenticated cookie.
// The first secret seals new cookies; every secret is tried when opening, which
// allows rotating secrets without signing everybody out.
type CookieStore struct {
	aeads  []cipher.AEAD
	secure bool
	now    func() time.Time
}

func NewCookieStore(secrets []string, secure bool) (*CookieStore, error) {
	if len(secrets) == 0 {
		return nil, fmt.Errorf("at least one session secret is required")
	}

	aeads := make([]cipher.AEAD, 0, len(secrets))
	for i, secret := range secrets {
		if secret == "" {
			return nil, fmt.Errorf("session secret %d is empty", i)
		}
		aead, err := newAEAD(secret)
		if err != nil {
			return nil, fmt.Errorf("derive session key %d: %w", i, err)
		}
		aeads = append(aeads, aead)
	}

	return &CookieStore{aeads: aeads, secure: secure, now: time.Now}, nil
}

func newAEAD(secret string) (cipher.AEAD, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}

// Read returns the record carried by the request, or nil when the cookie is
// missing, tampered with, sealed with an unknown secret, too old or incomplete.
func (s *CookieStore) Read(r *http.Request) *model.SessionRecord {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil
	}

	rec, err := s.Open(c.Value)
	if err != nil {
		return nil
	}
	return rec
}

// Write seals rec into a fresh Set-Cookie value.
func (s *CookieStore) Write(rec model.SessionRecord) (*http.Cookie, error) {
	value, err := s.Seal(rec)
	if err != nil {
		return nil, err
	}

	now := s.now()
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(MaxAge / time.Second),
		Expires:  now.Add(MaxAge).UTC(),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Clear returns a Set-Cookie that expires the session cookie immediately.
func (s *CookieStore) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *CookieStore) Seal(rec model.SessionRecord) (string, error) {
	plaintext, err := json.Marshal(envelope{Record: rec, IssuedAt: s.now().Unix()})
	if err != nil {
		return "", fmt.Errorf("encode session record: %w", err)
	}

	aead := s.aeads[0]
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, []byte(CookieName))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (s *CookieStore) Open(value string) (*model.SessionRecord, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, errMalformed
	}

	var plaintext []byte
	for _, aead := range s.aeads {
		nonceSize := aead.NonceSize()
		if len(raw) < nonceSize+aead.Overhead() {
			return nil, errMalformed
		}
		plaintext, err = aead.Open(nil, raw[:nonceSize], raw[nonceSize:], []byte(CookieName))
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, errMalformed
	}

	var env envelope
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return nil, errMalformed
	}

	if s.now().Sub(time.Unix(env.IssuedAt, 0)) > MaxAge {
		return nil, model.ErrSessionNotFound
	}

	if !env.Record.Complete() {
		return nil, model.ErrSessionNotFound
	}

	return &env.Record, nil
}
