package provider

import (
	"context"

	"git.sr.ht/~jakintosh/sso/pkg/sso"
)

// externalProvider adds hosted login and registration pages to a Provider.
type externalProvider struct {
	*Provider
	loginURL    string
	registerURL string
}

var _ sso.ExternalProvider = (*externalProvider)(nil)

func (e *externalProvider) GenerateLoginURL(ctx context.Context) (string, error) {
	return e.loginURL, nil
}

func (e *externalProvider) GenerateRegisterURL(ctx context.Context) (string, error) {
	return e.registerURL, nil
}

// Build returns p as an sso.Provider. The result also implements
// sso.ExternalProvider only when both URLs are set.
func Build(p *Provider, loginURL, registerURL string) sso.Provider {
	if loginURL == "" || registerURL == "" {
		return p
	}
	return &externalProvider{
		Provider:    p,
		loginURL:    loginURL,
		registerURL: registerURL,
	}
}
