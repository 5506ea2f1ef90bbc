// Package authprovidertest runs an in-process stand-in for the hosted auth
// service, for use in tests.
package authprovidertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const AnonKey = "test-anon-key"

type user struct {
	id       string
	email    string
	password string
	metadata map[string]any
}

// Server issues HS256 access tokens and single-use refresh tokens.
type Server struct {
	*httptest.Server

	AccessTTL time.Duration

	mu            sync.Mutex
	usersByEmail  map[string]*user
	usersByID     map[string]*user
	refreshTokens map[string]string
	accessTokens  map[string]string
	failSignOut   bool
	delay         time.Duration

	RefreshCalls atomic.Int64
	SignOutCalls atomic.Int64
}

func NewServer() *Server {
	s := &Server{
		AccessTTL:     time.Hour,
		usersByEmail:  map[string]*user{},
		usersByID:     map[string]*user{},
		refreshTokens: map[string]string{},
		accessTokens:  map[string]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", s.handleToken)
	mux.HandleFunc("POST /auth/v1/logout", s.handleLogout)
	mux.HandleFunc("GET /auth/v1/admin/users/{id}", s.handleAdminUser)
	s.Server = httptest.NewServer(mux)

	return s
}

// AddUser registers an account and returns its id.
func (s *Server) AddUser(email string, password string, metadata map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &user{id: uuid.NewString(), email: email, password: password, metadata: metadata}
	s.usersByEmail[strings.ToLower(email)] = u
	s.usersByID[u.id] = u
	return u.id
}

// IssueRefreshToken hands out a valid refresh token without a sign-in.
func (s *Server) IssueRefreshToken(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok := uuid.NewString()
	s.refreshTokens[tok] = userID
	return tok
}

// RevokeAll invalidates every outstanding refresh token.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens = map[string]string{}
}

func (s *Server) FailSignOut(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSignOut = fail
}

// SetDelay slows every response down, to exercise client timeouts.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func (s *Server) wait() {
	s.mu.Lock()
	d := s.delay
	s.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.wait()

	if r.Header.Get("apikey") != AnonKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid api key"})
		return
	}

	var body struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	switch r.URL.Query().Get("grant_type") {
	case "password":
		s.mu.Lock()
		u, ok := s.usersByEmail[strings.ToLower(body.Email)]
		s.mu.Unlock()
		if !ok || u.password != body.Password {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Invalid login credentials",
			})
			return
		}
		s.writeSession(w, u)
	case "refresh_token":
		s.RefreshCalls.Add(1)
		s.mu.Lock()
		userID, ok := s.refreshTokens[body.RefreshToken]
		delete(s.refreshTokens, body.RefreshToken)
		u := s.usersByID[userID]
		s.mu.Unlock()
		if !ok || u == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Invalid Refresh Token: Refresh Token Not Found",
			})
			return
		}
		s.writeSession(w, u)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (s *Server) writeSession(w http.ResponseWriter, u *user) {
	now := time.Now()
	exp := now.Add(s.AccessTTL)

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   u.id,
		"email": u.email,
		"exp":   exp.Unix(),
		"iat":   now.Unix(),
		"jti":   uuid.NewString(),
	}).SignedString([]byte("authprovidertest"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	refresh := uuid.NewString()
	s.mu.Lock()
	s.refreshTokens[refresh] = u.id
	s.accessTokens[access] = u.id
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"token_type":    "bearer",
		"expires_in":    int64(s.AccessTTL / time.Second),
		"expires_at":    exp.Unix(),
		"refresh_token": refresh,
		"user": map[string]any{
			"id":            u.id,
			"email":         u.email,
			"user_metadata": u.metadata,
		},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.wait()
	s.SignOutCalls.Add(1)

	s.mu.Lock()
	fail := s.failSignOut
	s.mu.Unlock()
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "logout unavailable"})
		return
	}

	access := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	userID, ok := s.accessTokens[access]
	if ok {
		delete(s.accessTokens, access)
		for tok, owner := range s.refreshTokens {
			if owner == userID {
				delete(s.refreshTokens, tok)
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u, ok := s.usersByID[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"msg": "User not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": u.id, "email": u.email, "user_metadata": u.metadata})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
