package ssotest

import (
	"context"

	"git.sr.ht/~jakintosh/sso/pkg/sso"
)

var (
	_ sso.Provider           = (*Provider)(nil)
	_ sso.ExternalProvider   = External{}
	_ sso.ContextualProvider = Contextual{}
	_ sso.ExternalProvider   = Full{}
	_ sso.ContextualProvider = Full{}
)

// External adds URL generation to a Provider.
type External struct {
	*Provider
}

func (e External) GenerateLoginURL(ctx context.Context) (string, error) {
	return e.generateURL("GenerateLoginURL", e.Provider.LoginURL)
}

func (e External) GenerateRegisterURL(ctx context.Context) (string, error) {
	return e.generateURL("GenerateRegisterURL", e.Provider.RegisterURL)
}

// Contextual adds per-user context storage to a Provider.
type Contextual struct {
	*Provider
}

func (c Contextual) RegisterUserWithContext(
	ctx context.Context,
	username string,
	password string,
	userCtx sso.Context,
) (bool, error) {
	return c.registerWithContext(username, password, userCtx)
}

func (c Contextual) UpdateContext(
	ctx context.Context,
	username string,
	userCtx sso.Context,
) (bool, error) {
	return c.updateContext(username, userCtx)
}

// Full implements every capability.
type Full struct {
	*Provider
}

func (f Full) GenerateLoginURL(ctx context.Context) (string, error) {
	return f.generateURL("GenerateLoginURL", f.Provider.LoginURL)
}

func (f Full) GenerateRegisterURL(ctx context.Context) (string, error) {
	return f.generateURL("GenerateRegisterURL", f.Provider.RegisterURL)
}

func (f Full) RegisterUserWithContext(
	ctx context.Context,
	username string,
	password string,
	userCtx sso.Context,
) (bool, error) {
	return f.registerWithContext(username, password, userCtx)
}

func (f Full) UpdateContext(
	ctx context.Context,
	username string,
	userCtx sso.Context,
) (bool, error) {
	return f.updateContext(username, userCtx)
}
