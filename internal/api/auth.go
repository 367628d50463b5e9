// Scriptorium - Video Ingestion Pipeline and Hybrid Retrieval
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/scriptorium

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/scriptorium/internal/config"
	"github.com/tomtom215/scriptorium/internal/logging"
)

// Auth modes.
const (
	AuthModeNone  = "none"
	AuthModeToken = "token"
)

// jwtTTL bounds operator session tokens.
const jwtTTL = time.Hour

var errInvalidToken = errors.New("invalid token")

// Authenticator verifies bearer credentials. Token mode accepts either the
// static operator token (checked against its bcrypt hash) or a short-lived
// HS256 JWT issued by this process.
type Authenticator struct {
	mode      string
	tokenHash []byte
	jwtSecret []byte
}

// NewAuthenticator builds the authenticator from the security config.
// Token mode without a token hash is a configuration error.
func NewAuthenticator(cfg config.SecurityConfig) (*Authenticator, error) {
	mode := cfg.AuthMode
	if mode == "" {
		mode = AuthModeNone
	}
	a := &Authenticator{
		mode:      mode,
		tokenHash: []byte(cfg.APITokenHash),
		jwtSecret: []byte(cfg.JWTSecret),
	}
	if mode == AuthModeToken {
		if len(a.tokenHash) == 0 {
			return nil, errors.New("auth_mode token requires api_token_hash")
		}
		if len(a.jwtSecret) == 0 {
			return nil, errors.New("auth_mode token requires jwt_secret")
		}
	}
	return a, nil
}

// Middleware rejects unauthenticated requests in token mode.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.mode == AuthModeNone {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := bearerToken(r)
		if !ok {
			NewResponseWriter(w, r).Unauthorized("missing bearer token")
			return
		}
		if err := a.verify(token); err != nil {
			logging.Ctx(r.Context()).Warn().Str("remote", r.RemoteAddr).Msg("authentication failed")
			NewResponseWriter(w, r).Unauthorized("invalid credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// verify accepts the static token or a valid operator JWT.
func (a *Authenticator) verify(token string) error {
	if strings.Count(token, ".") == 2 {
		return a.verifyJWT(token)
	}
	if err := bcrypt.CompareHashAndPassword(a.tokenHash, []byte(token)); err != nil {
		return errInvalidToken
	}
	return nil
}

func (a *Authenticator) verifyJWT(token string) error {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return errInvalidToken
	}
	return nil
}

// IssueJWT signs a short-lived operator session token. The caller must
// have already presented the static token.
func (a *Authenticator) IssueJWT(subject string) (string, time.Time, error) {
	expiresAt := time.Now().UTC().Add(jwtTTL)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Issuer:    "scriptorium",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign jwt: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyStatic checks a token against the bcrypt hash only. Used by the
// token-exchange endpoint, which must not accept a JWT to mint a JWT.
func (a *Authenticator) VerifyStatic(token string) error {
	if err := bcrypt.CompareHashAndPassword(a.tokenHash, []byte(token)); err != nil {
		return errInvalidToken
	}
	return nil
}

// Mode reports the configured auth mode.
func (a *Authenticator) Mode() string { return a.mode }

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return h[len(prefix):], true
}
