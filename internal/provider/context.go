package provider

import (
	"context"
	"fmt"

	"git.sr.ht/~jakintosh/sso/pkg/sso"
)

func (p *Provider) RegisterUserWithContext(
	ctx context.Context,
	username string,
	password string,
	c sso.Context,
) (bool, error) {
	ok, err := p.RegisterUser(ctx, username, password)
	if err != nil || !ok {
		return ok, err
	}
	return p.UpdateContext(ctx, username, c)
}

func (p *Provider) UpdateContext(
	ctx context.Context,
	username string,
	c sso.Context,
) (bool, error) {
	err := p.contexts.PutContext(ctx, username, c)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to store context: %w", err)
	}
	return true, nil
}
