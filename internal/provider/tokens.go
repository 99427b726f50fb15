package provider

import (
	"context"
	"crypto/subtle"
	"fmt"
)

// GenerateToken issues a random token and makes it the user's only active
// token.
func (p *Provider) GenerateToken(
	ctx context.Context,
	username string,
) (string, error) {
	if _, err := p.identities.GetSecret(ctx, username); err != nil {
		return "", fmt.Errorf("cannot issue token: %w", err)
	}

	token := p.newToken()
	if err := p.tokens.PutToken(ctx, username, token); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	// the user may have been deleted while the token was being stored
	if _, err := p.identities.GetSecret(ctx, username); err != nil {
		if _, delErr := p.tokens.DeleteToken(ctx, username, token); delErr != nil {
			p.log.WithField("username", username).WithError(delErr).Warn("failed to drop token of deleted user")
		}
		return "", fmt.Errorf("cannot issue token: %w", err)
	}
	return token, nil
}

func (p *Provider) ValidateToken(
	ctx context.Context,
	username string,
	token string,
) (bool, error) {
	if token == "" {
		return false, nil
	}
	stored, err := p.tokens.GetToken(ctx, username)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read token: %w", err)
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1, nil
}

func (p *Provider) RevokeToken(
	ctx context.Context,
	username string,
	token string,
) (bool, error) {
	if token == "" {
		return false, nil
	}
	deleted, err := p.tokens.DeleteToken(ctx, username, token)
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	return deleted, nil
}
