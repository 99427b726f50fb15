// Package testutil provides test environment setup and utilities for internal package tests.
package testutil

import (
	"io"
	"net/http"
	"path/filepath"
	"runtime"
	"testing"

	"git.sr.ht/~jakintosh/sso/internal/api"
	"git.sr.ht/~jakintosh/sso/internal/clients"
	"git.sr.ht/~jakintosh/sso/internal/database"
	"git.sr.ht/~jakintosh/sso/internal/provider"
	"git.sr.ht/~jakintosh/sso/pkg/server"
	"git.sr.ht/~jakintosh/sso/pkg/sso"
	"git.sr.ht/~jakintosh/sso/pkg/ssotest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Credentials of the client defined in testdata/clients/test-app.yaml
const (
	ClientName   = "test-app"
	ClientSecret = "secret"
	ClientToken  = "token"
)

// TestEnv provides all dependencies needed for testing
type TestEnv struct {
	DB       *database.SQLiteStore
	Clients  *clients.Registry
	Provider *provider.Provider
	Server   *server.Server
	Registry *prometheus.Registry
	Router   http.Handler
}

// SetupTestEnv creates an isolated environment around the reference
// provider with in-memory SQLite and hosted page URLs configured
func SetupTestEnv(
	t *testing.T,
) *TestEnv {
	t.Helper()

	// create in-memory SQLite database
	db, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	log := quietLogger()

	// load client definitions from testdata/clients
	registry, err := clients.Load(getTestDataPath("clients"), clients.WithLogger(log))
	if err != nil {
		t.Fatalf("failed to load test clients: %v", err)
	}

	p := provider.New(
		db.IdentityStore(),
		db.TokenStore(),
		db.ContextStore(),
		registry,
		provider.PasswordModeTesting,
		log,
	)

	env := setupRouter(provider.Build(p, ssotest.LoginURL, ssotest.RegisterURL), log)
	env.DB = db
	env.Clients = registry
	env.Provider = p
	return env
}

// SetupTestEnvWithProvider serves an arbitrary provider, such as one of the
// ssotest fakes
func SetupTestEnvWithProvider(
	t *testing.T,
	p sso.Provider,
) *TestEnv {
	t.Helper()
	return setupRouter(p, quietLogger())
}

func setupRouter(
	p sso.Provider,
	log *logrus.Logger,
) *TestEnv {
	srv := server.New(p, server.WithLogger(log))
	reg := prometheus.NewRegistry()
	a := api.New(srv, api.WithLogger(log), api.WithRegistry(reg))
	return &TestEnv{
		Server:   srv,
		Registry: reg,
		Router:   a.Router(),
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// getTestDataPath returns the path to a subdirectory in testdata
func getTestDataPath(
	subdir string,
) string {
	_, filename, _, _ := runtime.Caller(0)
	// Go up from internal/testutil to repo root, then into testdata
	return filepath.Join(filepath.Dir(filename), "..", "..", "testdata", subdir)
}

// RegisterTestUser creates a test user through the provider
func (env *TestEnv) RegisterTestUser(
	t *testing.T,
	username string,
	password string,
) {
	t.Helper()
	ok, err := env.Provider.RegisterUser(t.Context(), username, password)
	if err != nil || !ok {
		t.Fatalf("failed to register test user: %v", err)
	}
}

// LoginTestUser issues a token for an existing user
func (env *TestEnv) LoginTestUser(
	t *testing.T,
	username string,
) string {
	t.Helper()
	token, err := env.Provider.GenerateToken(t.Context(), username)
	if err != nil {
		t.Fatalf("failed to issue test token: %v", err)
	}
	return token
}
