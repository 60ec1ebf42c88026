// Package auth resolves the caller's external bearer credential from their
// identity-provider session. The identity provider itself is out of scope;
// TokenSource is the seam a real provider integration plugs into.
package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNoSession       = errors.New("no authenticated session")
	ErrNoLinkedAccount = errors.New("no linked external account")
)

// TokenSource exchanges a session token for the user's Google OAuth token.
type TokenSource interface {
	GoogleToken(ctx context.Context, sessionToken string) (string, error)
	LinkedProviders(ctx context.Context, sessionToken string) ([]string, error)
}

type Config struct {
	GoogleToken string   `envconfig:"GOOGLE_TOKEN" split_words:"true"`
	Providers   []string `envconfig:"PROVIDERS" split_words:"true"`
}

// StaticSource serves a fixed credential for every authenticated session.
// It mirrors the development fallback of the hosted identity provider and
// is the default wiring until a real provider client lands.
type StaticSource struct {
	token     string
	providers []string
}

var _ TokenSource = (*StaticSource)(nil)

func NewStaticSource(cfg Config) *StaticSource {
	return &StaticSource{
		token:     strings.TrimSpace(cfg.GoogleToken),
		providers: cfg.Providers,
	}
}

func (s *StaticSource) GoogleToken(_ context.Context, sessionToken string) (string, error) {
	if strings.TrimSpace(sessionToken) == "" {
		return "", ErrNoSession
	}
	if s.token == "" {
		return "", ErrNoLinkedAccount
	}
	return s.token, nil
}

func (s *StaticSource) LinkedProviders(_ context.Context, sessionToken string) ([]string, error) {
	if strings.TrimSpace(sessionToken) == "" {
		return nil, ErrNoSession
	}
	out := make([]string, len(s.providers))
	copy(out, s.providers)
	return out, nil
}
