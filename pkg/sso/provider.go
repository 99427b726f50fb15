package sso

import "context"

// Provider owns every business decision of the protocol: which applications
// may call, how users are stored, and how tokens are issued. A false result
// with a nil error is a plain rejection; a non-nil error is also treated as a
// rejection and is logged by the server.
type Provider interface {
	ValidateCredentials(ctx context.Context, clientSecret, clientToken string) (bool, error)
	RegisterUser(ctx context.Context, username, password string) (bool, error)
	DeleteUser(ctx context.Context, username string) (bool, error)
	LoginUser(ctx context.Context, username, password string) (bool, error)
	ValidateToken(ctx context.Context, username, token string) (bool, error)
	RevokeToken(ctx context.Context, username, token string) (bool, error)

	// GenerateToken issues a new token for username. Any previous token for
	// the same user must stop validating.
	GenerateToken(ctx context.Context, username string) (string, error)

	// MetadataForCall returns the metadata attached to a successful call.
	MetadataForCall(ctx context.Context, call Call, data map[string]any) (map[string]any, error)
}

// ExternalProvider serves account pages hosted outside the protocol.
type ExternalProvider interface {
	Provider
	GenerateLoginURL(ctx context.Context) (string, error)
	GenerateRegisterURL(ctx context.Context) (string, error)
}

// ContextualProvider stores an opaque context blob per user.
type ContextualProvider interface {
	Provider
	RegisterUserWithContext(ctx context.Context, username, password string, c Context) (bool, error)
	UpdateContext(ctx context.Context, username string, c Context) (bool, error)
}
