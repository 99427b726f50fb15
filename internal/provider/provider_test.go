package provider_test

import (
	"context"
	"io"
	"testing"

	"git.sr.ht/~jakintosh/sso/internal/clients"
	"git.sr.ht/~jakintosh/sso/internal/database"
	"git.sr.ht/~jakintosh/sso/internal/provider"
	"git.sr.ht/~jakintosh/sso/internal/tokenstore"
	"git.sr.ht/~jakintosh/sso/pkg/sso"
	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
)

type staticRegistry map[string]*clients.Definition

func (r staticRegistry) Lookup(secret, token string) (*clients.Definition, bool) {
	def, ok := r[secret]
	if !ok || def.Token != token {
		return nil, false
	}
	return def, true
}

var testClients = staticRegistry{
	"secret": {
		Name:     "notes",
		Secret:   "secret",
		Token:    "token",
		Metadata: map[string]any{"owner": "ops"},
	},
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func setupProvider(t *testing.T) *provider.Provider {
	t.Helper()
	store, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return provider.New(
		store.IdentityStore(),
		store.TokenStore(),
		store.ContextStore(),
		testClients,
		provider.PasswordModeTesting,
		quietLogger(),
	)
}

func setupRedisProvider(t *testing.T) (*provider.Provider, *miniredis.Miniredis) {
	t.Helper()
	store, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	mr := miniredis.RunT(t)
	tokens, err := tokenstore.NewRedisStore(tokenstore.Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	t.Cleanup(func() { _ = tokens.Close() })

	p := provider.New(
		store.IdentityStore(),
		tokens,
		store.ContextStore(),
		testClients,
		provider.PasswordModeTesting,
		quietLogger(),
	)
	return p, mr
}

func mustRegister(t *testing.T, p *provider.Provider, username, password string) {
	t.Helper()
	ok, err := p.RegisterUser(context.Background(), username, password)
	if err != nil || !ok {
		t.Fatalf("RegisterUser(%s) = %v, %v", username, ok, err)
	}
}

func TestValidateCredentials(t *testing.T) {
	t.Parallel()
	p := setupProvider(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		secret string
		token  string
		want   bool
	}{
		{"known", "secret", "token", true},
		{"wrong token", "secret", "other", false},
		{"unknown secret", "other", "token", false},
		{"empty", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := p.ValidateCredentials(ctx, tc.secret, tc.token)
			if err != nil {
				t.Fatalf("ValidateCredentials failed: %v", err)
			}
			if ok != tc.want {
				t.Errorf("ValidateCredentials = %v, want %v", ok, tc.want)
			}
		})
	}
}

func TestRegisterUser_Duplicate(t *testing.T) {
	t.Parallel()
	p := setupProvider(t)
	ctx := context.Background()

	mustRegister(t, p, "alice", "pw")

	// second registration is refused without an error
	ok, err := p.RegisterUser(ctx, "alice", "other")
	if err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	if ok {
		t.Error("duplicate registration succeeded")
	}
}

func TestRegisterUser_InvalidInput(t *testing.T) {
	t.Parallel()
	p := setupProvider(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"empty username", "", "pw"},
		{"colon in username", "al:ice", "pw"},
		{"empty password", "alice", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := p.RegisterUser(ctx, tc.username, tc.password)
			if err != nil {
				t.Fatalf("RegisterUser failed: %v", err)
			}
			if ok {
				t.Errorf("RegisterUser(%q, %q) succeeded", tc.username, tc.password)
			}
		})
	}
}

func TestLoginUser(t *testing.T) {
	t.Parallel()
	p := setupProvider(t)
	ctx := context.Background()
	mustRegister(t, p, "alice", "pw")

	// correct password logs in
	ok, err := p.LoginUser(ctx, "alice", "pw")
	if err != nil || !ok {
		t.Fatalf("LoginUser = %v, %v, want true", ok, err)
	}

	// wrong password is refused
	ok, err = p.LoginUser(ctx, "alice", "nope")
	if err != nil || ok {
		t.Errorf("LoginUser wrong password = %v, %v, want false", ok, err)
	}

	// unknown user is refused
	ok, err = p.LoginUser(ctx, "bob", "pw")
	if err != nil || ok {
		t.Errorf("LoginUser unknown user = %v, %v, want false", ok, err)
	}
}

func testTokenLifecycle(t *testing.T, p *provider.Provider) {
	t.Helper()
	ctx := context.Background()
	mustRegister(t, p, "alice", "pw")

	first, err := p.GenerateToken(ctx, "alice")
	if err != nil || first == "" {
		t.Fatalf("GenerateToken = %q, %v", first, err)
	}

	// freshly issued token validates
	if ok, err := p.ValidateToken(ctx, "alice", first); err != nil || !ok {
		t.Fatalf("ValidateToken = %v, %v, want true", ok, err)
	}

	// a second token replaces the first
	second, err := p.GenerateToken(ctx, "alice")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if second == first {
		t.Fatal("GenerateToken returned the same token twice")
	}
	if ok, _ := p.ValidateToken(ctx, "alice", first); ok {
		t.Error("replaced token still validates")
	}

	// revoking the stale token does nothing
	if ok, _ := p.RevokeToken(ctx, "alice", first); ok {
		t.Error("revoked a stale token")
	}

	// revoking the active token ends the session
	if ok, err := p.RevokeToken(ctx, "alice", second); err != nil || !ok {
		t.Fatalf("RevokeToken = %v, %v, want true", ok, err)
	}
	if ok, _ := p.ValidateToken(ctx, "alice", second); ok {
		t.Error("revoked token still validates")
	}
}

func TestTokenLifecycle_SQLite(t *testing.T) {
	t.Parallel()
	testTokenLifecycle(t, setupProvider(t))
}

func TestTokenLifecycle_Redis(t *testing.T) {
	t.Parallel()
	p, _ := setupRedisProvider(t)
	testTokenLifecycle(t, p)
}

func TestGenerateToken_UnknownUser(t *testing.T) {
	t.Parallel()
	p, _ := setupRedisProvider(t)

	// tokens are only issued to registered users
	if _, err := p.GenerateToken(context.Background(), "ghost"); err == nil {
		t.Error("expected error issuing token to unknown user")
	}
}

func TestDeleteUser_DropsTokens(t *testing.T) {
	t.Parallel()
	p, _ := setupRedisProvider(t)
	ctx := context.Background()
	mustRegister(t, p, "alice", "pw")

	token, err := p.GenerateToken(ctx, "alice")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if ok, err := p.DeleteUser(ctx, "alice"); err != nil || !ok {
		t.Fatalf("DeleteUser = %v, %v, want true", ok, err)
	}

	// the token left with the user
	if ok, _ := p.ValidateToken(ctx, "alice", token); ok {
		t.Error("token of deleted user still validates")
	}

	// deleting again reports nothing deleted
	if ok, err := p.DeleteUser(ctx, "alice"); err != nil || ok {
		t.Errorf("second DeleteUser = %v, %v, want false", ok, err)
	}
}

func TestDeleteUser_TokenStoreDown(t *testing.T) {
	t.Parallel()
	p, mr := setupRedisProvider(t)
	ctx := context.Background()
	mustRegister(t, p, "alice", "pw")

	token, err := p.GenerateToken(ctx, "alice")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	// a token store failure aborts the delete
	mr.SetError("READONLY unavailable")
	if ok, err := p.DeleteUser(ctx, "alice"); err == nil || ok {
		t.Fatalf("DeleteUser = %v, %v, want false with error", ok, err)
	}
	mr.SetError("")

	// the user is still there and re-registering the name is refused
	if ok, _ := p.RegisterUser(ctx, "alice", "other"); ok {
		t.Fatal("re-registered a user that was never deleted")
	}
	if ok, _ := p.ValidateToken(ctx, "alice", token); !ok {
		t.Error("token of surviving user no longer validates")
	}
}

func TestRegisterUser_ClearsStaleToken(t *testing.T) {
	t.Parallel()
	p, mr := setupRedisProvider(t)
	ctx := context.Background()

	// a token left in the store under a free name
	if err := mr.Set(tokenstore.DefaultPrefix+"alice", "stale"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	mustRegister(t, p, "alice", "pw")

	// the new owner does not inherit it
	if ok, _ := p.ValidateToken(ctx, "alice", "stale"); ok {
		t.Error("new user validated with a stale token")
	}
}

func TestRegisterUser_TokenStoreDown(t *testing.T) {
	t.Parallel()
	p, mr := setupRedisProvider(t)
	ctx := context.Background()

	// registration fails and is rolled back when stale tokens cannot be cleared
	mr.SetError("READONLY unavailable")
	if ok, err := p.RegisterUser(ctx, "alice", "pw"); err == nil || ok {
		t.Fatalf("RegisterUser = %v, %v, want false with error", ok, err)
	}
	mr.SetError("")

	if ok, _ := p.LoginUser(ctx, "alice", "pw"); ok {
		t.Error("rolled back user can still log in")
	}
	mustRegister(t, p, "alice", "pw")
}

func TestContext(t *testing.T) {
	t.Parallel()
	p := setupProvider(t)
	ctx := context.Background()

	ok, err := p.RegisterUserWithContext(ctx, "alice", "pw", sso.Context{"plan": "pro"})
	if err != nil || !ok {
		t.Fatalf("RegisterUserWithContext = %v, %v", ok, err)
	}

	// context shows up in validateToken metadata
	md, err := p.MetadataForCall(ctx, sso.CallValidateToken, map[string]any{"username": "alice"})
	if err != nil {
		t.Fatalf("MetadataForCall failed: %v", err)
	}
	c, _ := md["context"].(sso.Context)
	if c["plan"] != "pro" {
		t.Errorf("context = %v, want plan=pro", md["context"])
	}

	// updating context for an unknown user fails
	ok, err = p.UpdateContext(ctx, "bob", sso.Context{"plan": "free"})
	if err != nil || ok {
		t.Errorf("UpdateContext unknown user = %v, %v, want false", ok, err)
	}
}

func TestMetadataForCall_Connect(t *testing.T) {
	t.Parallel()
	p := setupProvider(t)

	md, err := p.MetadataForCall(context.Background(), sso.CallConnect, map[string]any{
		"clientSecret": "secret",
		"clientToken":  "token",
	})
	if err != nil {
		t.Fatalf("MetadataForCall failed: %v", err)
	}

	// client name and configured metadata, never the credentials
	if md["client"] != "notes" || md["owner"] != "ops" {
		t.Errorf("metadata = %v", md)
	}
	if _, ok := md["clientSecret"]; ok {
		t.Error("metadata leaked the client secret")
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()
	p := setupProvider(t)

	// without both URLs there is no external capability
	if _, ok := provider.Build(p, "https://sso.test/login", "").(sso.ExternalProvider); ok {
		t.Error("Build with one URL is external")
	}

	built := provider.Build(p, "https://sso.test/login", "https://sso.test/register")
	ext, ok := built.(sso.ExternalProvider)
	if !ok {
		t.Fatal("Build with both URLs is not external")
	}
	if _, ok := built.(sso.ContextualProvider); !ok {
		t.Error("external provider lost the contextual capability")
	}

	url, err := ext.GenerateLoginURL(context.Background())
	if err != nil || url != "https://sso.test/login" {
		t.Errorf("GenerateLoginURL = %q, %v", url, err)
	}
	url, err = ext.GenerateRegisterURL(context.Background())
	if err != nil || url != "https://sso.test/register" {
		t.Errorf("GenerateRegisterURL = %q, %v", url, err)
	}
}

func TestParsePasswordMode(t *testing.T) {
	t.Parallel()
	if provider.ParsePasswordMode("Testing") != provider.PasswordModeTesting {
		t.Error("testing not parsed")
	}
	if provider.ParsePasswordMode("anything") != provider.PasswordModeProduction {
		t.Error("unknown mode is not production")
	}
}
