package server

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/GoCodeAlone/roster/config"
	"github.com/GoCodeAlone/roster/server/api"
	"github.com/GoCodeAlone/roster/task"
)

// claims is the JWT payload. It carries the full actor so requests need no
// user lookup.
type claims struct {
	UserID       int64 `json:"user_id"`
	IsAdmin      bool  `json:"is_admin"`
	DepartmentID int64 `json:"department_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *claims) actor() task.Actor {
	return task.Actor{UserID: c.UserID, IsAdmin: c.IsAdmin, DepartmentID: c.DepartmentID}
}

// signJWT issues an HS256 token for u valid for ttl from now.
func signJWT(secret string, u config.UserConfig, now time.Time, ttl time.Duration) (string, error) {
	c := claims{
		UserID:       u.UserID,
		IsAdmin:      u.IsAdmin,
		DepartmentID: u.DepartmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// verifyJWT validates signature, algorithm and expiry and returns the claims.
func verifyJWT(secret, token string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if c.UserID <= 0 {
		return nil, errors.New("token has no user")
	}
	return &c, nil
}

// generateSecret creates a random 32-byte secret.
func generateSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// jwtSecret returns the configured JWT secret, generating one if empty.
// Generated secrets do not survive a restart.
func (s *Server) jwtSecret() string {
	if s.cfg.Auth.JWTSecret != "" {
		return s.cfg.Auth.JWTSecret
	}
	s.secretOnce.Do(func() {
		s.generatedSecret = generateSecret()
		s.logger.Warn("auth.jwt_secret not set; using an ephemeral secret")
	})
	return s.generatedSecret
}

// loginRequest is the body accepted by POST /api/auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the body returned by a successful login.
type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      userResult `json:"user"`
}

type userResult struct {
	Username string `json:"username"`
	task.Actor
}

// handleLogin checks credentials against the configured users and issues a JWT.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, ok := s.users[req.Username]
	if !ok || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		s.logger.Info("login failed", slog.String("username", req.Username))
		writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	now := time.Now()
	ttl := s.cfg.Auth.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	token, err := signJWT(s.jwtSecret(), u, now, ttl)
	if err != nil {
		s.logger.Error("sign jwt", slog.Any("err", err))
		writeJSONError(w, http.StatusInternalServerError, "could not issue token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: now.Add(ttl).UTC().Truncate(time.Second),
		User: userResult{
			Username: u.Username,
			Actor:    task.Actor{UserID: u.UserID, IsAdmin: u.IsAdmin, DepartmentID: u.DepartmentID},
		},
	})
}

// handleMe returns the currently authenticated user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := api.ActorFrom(r.Context())
	writeJSON(w, http.StatusOK, userResult{Username: subjectFrom(r.Context()), Actor: actor})
}

// bearerToken extracts the token from the Authorization header or, for
// EventSource clients that cannot set headers, the token query parameter.
func bearerToken(r *http.Request, allowQuery bool) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if allowQuery {
		return r.URL.Query().Get("token")
	}
	return ""
}

// authMiddleware enforces JWT authentication on wrapped handlers and attaches
// the actor to the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r, false)
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}
		c, err := verifyJWT(s.jwtSecret(), token)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "invalid token: "+err.Error())
			return
		}
		ctx := api.WithActor(r.Context(), c.actor())
		ctx = contextWithSubject(ctx, c.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
