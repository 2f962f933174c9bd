package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"os"
	"strings"
)

var (
	ErrMissingBearer = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrNotConfigured = errors.New("authentication not configured")
)

type Authenticator interface {
	Authenticate(r *http.Request) error
}

// TokenAuthenticator accepts a single static bearer token, the mode used
// by CI callers. An empty token fails closed.
type TokenAuthenticator struct {
	Token string
}

func NewAuthenticatorFromEnv() *TokenAuthenticator {
	return &TokenAuthenticator{Token: os.Getenv("PLANGATE_DEV_TOKEN")}
}

func (a *TokenAuthenticator) Authenticate(r *http.Request) error {
	if a.Token == "" {
		return ErrNotConfigured
	}

	bearer, err := extractBearer(r)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(bearer), []byte(a.Token)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

func extractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingBearer
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", ErrInvalidToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}
