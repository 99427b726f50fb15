package client

import (
	"context"

	"git.sr.ht/~jakintosh/sso/pkg/authorization"
	"git.sr.ht/~jakintosh/sso/pkg/sso"
)

// Connect checks that the server accepts this application's credentials.
func (c *Client) Connect(ctx context.Context) *sso.Response {
	return c.do(ctx, sso.CallConnect, "", nil)
}

// Register creates a user. The credentials travel in the body since no
// session exists yet.
func (c *Client) Register(
	ctx context.Context,
	username string,
	password string,
) *sso.Response {
	return c.do(ctx, sso.CallRegister, "", map[string]any{
		"authorization": authorization.Encode(username, password),
	})
}

func (c *Client) DeleteUser(
	ctx context.Context,
	username string,
) *sso.Response {
	return c.do(ctx, sso.CallDeleteUser, "", map[string]any{
		"username": username,
	})
}

// Login exchanges a password for a new token. Earlier tokens for the user
// stop validating.
func (c *Client) Login(
	ctx context.Context,
	username string,
	password string,
) *sso.Response {
	return c.do(ctx, sso.CallLogin, authorization.Basic(username, password), nil)
}

func (c *Client) ValidateToken(
	ctx context.Context,
	username string,
	token string,
) *sso.Response {
	return c.do(ctx, sso.CallValidateToken, authorization.Bearer(username, token), nil)
}

func (c *Client) RevokeToken(
	ctx context.Context,
	username string,
	token string,
) *sso.Response {
	return c.do(ctx, sso.CallRevokeToken, authorization.Bearer(username, token), nil)
}

func (c *Client) GenerateLoginURL(ctx context.Context) *sso.Response {
	return c.do(ctx, sso.CallGenerateLoginURL, "", nil)
}

func (c *Client) GenerateRegisterURL(ctx context.Context) *sso.Response {
	return c.do(ctx, sso.CallGenerateRegisterURL, "", nil)
}

func (c *Client) RegisterWithContext(
	ctx context.Context,
	username string,
	password string,
	userCtx sso.Context,
) *sso.Response {
	return c.do(ctx, sso.CallRegisterWithContext, "", map[string]any{
		"authorization": authorization.Encode(username, password),
		"context":       contextOrEmpty(userCtx),
	})
}

func (c *Client) UpdateContext(
	ctx context.Context,
	username string,
	token string,
	userCtx sso.Context,
) *sso.Response {
	return c.do(ctx, sso.CallUpdateContext, authorization.Bearer(username, token), map[string]any{
		"context": contextOrEmpty(userCtx),
	})
}

func contextOrEmpty(c sso.Context) sso.Context {
	if c == nil {
		return sso.Context{}
	}
	return c
}
