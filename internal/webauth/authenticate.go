package webauth

import (
	"context"
	"fmt"

	"github.com/naotama2002/switchbot-key/internal/switchbot"
)

// Provider turns a captured redirect into an access token.
type Provider interface {
	NewSession() (*switchbot.Session, error)
	AuthorizeURL(s *switchbot.Session) string
	ParseCallback(raw string, s *switchbot.Session) (*switchbot.Callback, error)
	Token(ctx context.Context, cb *switchbot.Callback, s *switchbot.Session) (string, error)
}

// Authenticate runs flow against provider and returns the access token.
func Authenticate(ctx context.Context, flow *Flow, provider Provider) (string, error) {
	session, err := provider.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}

	payload, err := flow.Run(ctx, provider.AuthorizeURL(session))
	if err != nil {
		return "", err
	}

	cb, err := provider.ParseCallback(payload, session)
	if err != nil {
		return "", err
	}
	return provider.Token(ctx, cb, session)
}
