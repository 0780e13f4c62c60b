// Copyright 2024-2026 Aiku AI

package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAuthFailure marks a failed token verification. It is fatal to the one
// connection that presented the token and nothing else.
var ErrAuthFailure = errors.New("authentication failed")

// Identity is the result of a successful token verification.
type Identity struct {
	Email string `json:"email"`
}

// TokenVerifier exchanges an opaque client token for an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// HTTPVerifier delegates verification to an external identity service:
// POST {url} with {"token": "..."} returns {"email": "..."} on success and
// a non-200 status on failure.
type HTTPVerifier struct {
	url    string
	client *http.Client
}

// NewHTTPVerifier creates a verifier backed by the given endpoint.
func NewHTTPVerifier(url string) *HTTPVerifier {
	return &HTTPVerifier{
		url: url,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Verify implements TokenVerifier.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return Identity{}, fmt.Errorf("failed to marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return Identity{}, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("verify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("%w: verifier returned status %s", ErrAuthFailure, resp.Status)
	}

	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return Identity{}, fmt.Errorf("failed to decode verify response: %w", err)
	}
	if identity.Email == "" {
		return Identity{}, fmt.Errorf("%w: verifier returned no email", ErrAuthFailure)
	}
	return identity, nil
}

// JWTVerifier validates HS256-signed tokens locally. Intended for
// self-hosted deployments where the login service shares a secret with the
// relay instead of exposing a verification endpoint.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for the given shared secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify implements TokenVerifier. The token must be a valid, unexpired
// HS256 JWT carrying an "email" claim.
func (v *JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("%w: unexpected claims type", ErrAuthFailure)
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return Identity{}, fmt.Errorf("%w: token has no email claim", ErrAuthFailure)
	}
	return Identity{Email: email}, nil
}
