package ssotest

import (
	"io"
	"net/http/httptest"
	"testing"

	"git.sr.ht/~jakintosh/sso/internal/api"
	"git.sr.ht/~jakintosh/sso/pkg/client"
	"git.sr.ht/~jakintosh/sso/pkg/server"
	"git.sr.ht/~jakintosh/sso/pkg/sso"
	"github.com/sirupsen/logrus"
)

// Server serves a provider over HTTPS so applications can be tested
// against a real client without running an sso deployment.
type Server struct {
	*httptest.Server
	Provider sso.Provider
}

// NewServer starts a TLS server for p and closes it when the test ends.
func NewServer(
	t testing.TB,
	p sso.Provider,
) *Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	srv := server.New(p, server.WithLogger(log))
	ts := httptest.NewTLSServer(api.New(srv, api.WithLogger(log)).Router())
	t.Cleanup(ts.Close)

	return &Server{
		Server:   ts,
		Provider: p,
	}
}

// Client returns a client that trusts the server's certificate and carries
// ClientSecret and ClientToken.
func (s *Server) Client(
	t testing.TB,
	opts ...client.Option,
) *client.Client {
	t.Helper()
	opts = append([]client.Option{client.WithHTTPClient(s.Server.Client())}, opts...)
	c, err := client.New(s.URL, ClientSecret, ClientToken, opts...)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}
