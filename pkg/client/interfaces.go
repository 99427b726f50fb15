package client

import (
	"context"

	"git.sr.ht/~jakintosh/sso/pkg/sso"
)

// Sessions covers the calls an application makes on behalf of its users.
// Consuming projects should depend on this interface rather than *Client
// to enable testing with mock implementations.
type Sessions interface {
	Login(ctx context.Context, username, password string) *sso.Response
	ValidateToken(ctx context.Context, username, token string) *sso.Response
	RevokeToken(ctx context.Context, username, token string) *sso.Response
}

// Accounts covers account lifecycle calls.
type Accounts interface {
	Register(ctx context.Context, username, password string) *sso.Response
	DeleteUser(ctx context.Context, username string) *sso.Response
	RegisterWithContext(ctx context.Context, username, password string, userCtx sso.Context) *sso.Response
	UpdateContext(ctx context.Context, username, token string, userCtx sso.Context) *sso.Response
}

// SSO exposes every protocol call.
type SSO interface {
	Sessions
	Accounts
	Connect(ctx context.Context) *sso.Response
	GenerateLoginURL(ctx context.Context) *sso.Response
	GenerateRegisterURL(ctx context.Context) *sso.Response
}

var _ SSO = (*Client)(nil)
