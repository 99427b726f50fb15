// Package ssotest provides in-memory providers for exercising servers and
// clients in tests.
//
// A [Provider] implements only the base capability. Wrap it with [External],
// [Contextual] or [Full] to add the optional capabilities:
//
//	p := ssotest.New()
//	p.AddUser("user", "pass")
//	srv := server.New(ssotest.Full{Provider: p})
//
// Every provider method invocation is recorded and can be inspected with
// [Provider.Invocations].
package ssotest

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"git.sr.ht/~jakintosh/sso/pkg/sso"
)

const (
	ClientSecret = "secret"
	ClientToken  = "token"

	LoginURL    = "https://server.test/login"
	RegisterURL = "https://server.test/register"
)

type user struct {
	password string
	context  sso.Context
}

// Provider is a base-only provider backed by maps.
type Provider struct {
	mu          sync.Mutex
	users       map[string]*user
	tokens      map[string]string
	invocations []string
	rejects     map[string]bool
	errs        map[string]error
	seq         int

	LoginURL    string
	RegisterURL string
}

func New() *Provider {
	return &Provider{
		users:       make(map[string]*user),
		tokens:      make(map[string]string),
		rejects:     make(map[string]bool),
		errs:        make(map[string]error),
		LoginURL:    LoginURL,
		RegisterURL: RegisterURL,
	}
}

// AddUser stores a user without recording an invocation.
func (p *Provider) AddUser(username, password string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[username] = &user{password: password}
}

// SetToken stores a token for username without recording an invocation.
func (p *Provider) SetToken(username, token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[username] = token
}

// Reject makes the named method return a plain rejection.
func (p *Provider) Reject(method string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejects[method] = true
}

// FailWith makes the named method return err.
func (p *Provider) FailWith(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[method] = err
}

func (p *Provider) HasUser(username string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.users[username]
	return ok
}

func (p *Provider) Token(username string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tokens[username]
	return t, ok
}

// UserContext returns a copy of the context stored for username.
func (p *Provider) UserContext(username string) sso.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[username]
	if !ok || u.context == nil {
		return nil
	}
	return maps.Clone(u.context)
}

// Invocations returns the provider methods called so far, in order.
func (p *Provider) Invocations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.invocations)
}

func (p *Provider) Invoked(method string) bool {
	return slices.Contains(p.Invocations(), method)
}

func (p *Provider) ResetInvocations() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invocations = nil
}

// enter records the invocation and reports any injected outcome. Callers
// must hold p.mu.
func (p *Provider) enter(method string) (rejected bool, err error) {
	p.invocations = append(p.invocations, method)
	if err := p.errs[method]; err != nil {
		return true, err
	}
	return p.rejects[method], nil
}

func (p *Provider) ValidateCredentials(
	ctx context.Context,
	clientSecret string,
	clientToken string,
) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rejected, err := p.enter("ValidateCredentials"); rejected {
		return false, err
	}
	return clientSecret == ClientSecret && clientToken == ClientToken, nil
}

func (p *Provider) RegisterUser(
	ctx context.Context,
	username string,
	password string,
) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rejected, err := p.enter("RegisterUser"); rejected {
		return false, err
	}
	if _, exists := p.users[username]; exists {
		return false, nil
	}
	p.users[username] = &user{password: password}
	return true, nil
}

func (p *Provider) DeleteUser(
	ctx context.Context,
	username string,
) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rejected, err := p.enter("DeleteUser"); rejected {
		return false, err
	}
	if _, exists := p.users[username]; !exists {
		return false, nil
	}
	delete(p.users, username)
	delete(p.tokens, username)
	return true, nil
}

func (p *Provider) LoginUser(
	ctx context.Context,
	username string,
	password string,
) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rejected, err := p.enter("LoginUser"); rejected {
		return false, err
	}
	u, ok := p.users[username]
	return ok && u.password == password, nil
}

func (p *Provider) ValidateToken(
	ctx context.Context,
	username string,
	token string,
) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rejected, err := p.enter("ValidateToken"); rejected {
		return false, err
	}
	return p.tokenMatches(username, token), nil
}

func (p *Provider) RevokeToken(
	ctx context.Context,
	username string,
	token string,
) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rejected, err := p.enter("RevokeToken"); rejected {
		return false, err
	}
	if !p.tokenMatches(username, token) {
		return false, nil
	}
	delete(p.tokens, username)
	return true, nil
}

func (p *Provider) GenerateToken(
	ctx context.Context,
	username string,
) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rejected, err := p.enter("GenerateToken"); rejected {
		return "", err
	}
	if _, ok := p.users[username]; !ok {
		return "", fmt.Errorf("unknown user %q", username)
	}
	p.seq++
	token := fmt.Sprintf("%s-token-%d", username, p.seq)
	p.tokens[username] = token
	return token, nil
}

// MetadataForCall echoes data back.
func (p *Provider) MetadataForCall(
	ctx context.Context,
	call sso.Call,
	data map[string]any,
) (map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rejected, err := p.enter("MetadataForCall"); rejected {
		return nil, err
	}
	return maps.Clone(data), nil
}

func (p *Provider) tokenMatches(username, token string) bool {
	if _, ok := p.users[username]; !ok {
		return false
	}
	stored, ok := p.tokens[username]
	return ok && stored == token
}

func (p *Provider) generateURL(method, url string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rejected, err := p.enter(method); rejected {
		return "", err
	}
	return url, nil
}

func (p *Provider) registerWithContext(
	username string,
	password string,
	c sso.Context,
) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rejected, err := p.enter("RegisterUserWithContext"); rejected {
		return false, err
	}
	if _, exists := p.users[username]; exists {
		return false, nil
	}
	p.users[username] = &user{password: password, context: maps.Clone(c)}
	return true, nil
}

func (p *Provider) updateContext(username string, c sso.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rejected, err := p.enter("UpdateContext"); rejected {
		return false, err
	}
	u, ok := p.users[username]
	if !ok {
		return false, nil
	}
	u.context = maps.Clone(c)
	return true, nil
}
