package provider

import (
	"context"
	"errors"

	"git.sr.ht/~jakintosh/sso/pkg/sso"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrIdentityExists = errors.New("identity already exists")
)

// IdentityStore handles persistence of user identity data
type IdentityStore interface {
	InsertIdentity(ctx context.Context, username string, secret []byte) error
	GetSecret(ctx context.Context, username string) ([]byte, error)
	DeleteIdentity(ctx context.Context, username string) (deleted bool, err error)
}

// TokenStore holds at most one active token per user
type TokenStore interface {
	PutToken(ctx context.Context, username string, token string) error
	GetToken(ctx context.Context, username string) (string, error)
	DeleteToken(ctx context.Context, username string, token string) (deleted bool, err error)
	DeleteTokens(ctx context.Context, username string) error
}

// ContextStore handles persistence of per-user context blobs
type ContextStore interface {
	PutContext(ctx context.Context, username string, c sso.Context) error
	GetContext(ctx context.Context, username string) (sso.Context, error)
}
