// Package provider implements the server's business logic on top of the
// identity, token, and context stores and the client registry.
package provider

import (
	"context"
	"os"
	"strings"
	"testing"

	"git.sr.ht/~jakintosh/sso/internal/clients"
	"git.sr.ht/~jakintosh/sso/pkg/sso"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// PasswordMode controls bcrypt cost for password hashing.
// Use PasswordModeProduction for real deployments and PasswordModeTesting only in tests.
type PasswordMode int

const (
	// PasswordModeProduction uses bcrypt.DefaultCost (10) for secure password hashing.
	PasswordModeProduction PasswordMode = iota
	// PasswordModeTesting uses bcrypt.MinCost (4) for fast test execution.
	// WARNING: This mode will panic if used outside of go test.
	PasswordModeTesting
)

// ParsePasswordMode maps a config value to a mode. Unknown values select
// production.
func ParsePasswordMode(s string) PasswordMode {
	if strings.EqualFold(s, "testing") {
		return PasswordModeTesting
	}
	return PasswordModeProduction
}

// Cost returns the bcrypt cost for this mode.
// Panics if PasswordModeTesting is used outside of a test environment.
func (m PasswordMode) Cost() int {
	switch m {
	case PasswordModeTesting:
		if !testing.Testing() && os.Getenv("SSO_ALLOW_INSECURE_HASHING") == "" {
			panic("provider: PasswordModeTesting used outside of test environment")
		}
		return bcrypt.MinCost
	default:
		return bcrypt.DefaultCost
	}
}

// ClientRegistry resolves client credentials to an application.
type ClientRegistry interface {
	Lookup(secret, token string) (*clients.Definition, bool)
}

// Provider implements sso.Provider and sso.ContextualProvider. It depends on
// storage interfaces and delegates to them for persistence.
type Provider struct {
	identities   IdentityStore
	tokens       TokenStore
	contexts     ContextStore
	registry     ClientRegistry
	passwordMode PasswordMode
	log          *logrus.Logger
	newToken     func() string
}

var (
	_ sso.Provider           = (*Provider)(nil)
	_ sso.ContextualProvider = (*Provider)(nil)
)

func New(
	identityStore IdentityStore,
	tokenStore TokenStore,
	contextStore ContextStore,
	registry ClientRegistry,
	passwordMode PasswordMode,
	log *logrus.Logger,
) *Provider {
	if log == nil {
		log = logrus.New()
	}
	if passwordMode == PasswordModeTesting {
		log.Warn("using insecure password hashing (testing mode)")
	}
	return &Provider{
		identities:   identityStore,
		tokens:       tokenStore,
		contexts:     contextStore,
		registry:     registry,
		passwordMode: passwordMode,
		log:          log,
		newToken:     uuid.NewString,
	}
}

func (p *Provider) ValidateCredentials(
	ctx context.Context,
	clientSecret string,
	clientToken string,
) (bool, error) {
	_, ok := p.registry.Lookup(clientSecret, clientToken)
	if !ok {
		p.log.Debug("unknown client credentials")
	}
	return ok, nil
}

// MetadataForCall attaches the calling application's name and metadata on
// connect, and the stored context on login and validateToken.
func (p *Provider) MetadataForCall(
	ctx context.Context,
	call sso.Call,
	data map[string]any,
) (map[string]any, error) {
	md := map[string]any{}

	switch call {
	case sso.CallConnect:
		secret, _ := data["clientSecret"].(string)
		token, _ := data["clientToken"].(string)
		def, ok := p.registry.Lookup(secret, token)
		if !ok {
			return md, nil
		}
		for k, v := range def.Metadata {
			md[k] = v
		}
		md["client"] = def.Name

	case sso.CallLogin, sso.CallValidateToken:
		username, _ := data["username"].(string)
		c, err := p.contexts.GetContext(ctx, username)
		if err == nil {
			md["context"] = c
		} else if !isNotFound(err) {
			return nil, err
		}
	}

	return md, nil
}
