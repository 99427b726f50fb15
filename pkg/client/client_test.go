package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/sso/pkg/authorization"
	"git.sr.ht/~jakintosh/sso/pkg/sso"
	"github.com/sirupsen/logrus"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   map[string]any
}

// recordingServer answers every request with reply and remembers the last
// request it saw.
type recordingServer struct {
	mu    sync.Mutex
	last  capturedRequest
	reply string
}

func (s *recordingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	captured := capturedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
	}
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &captured.Body)
	}

	s.mu.Lock()
	s.last = captured
	reply := s.reply
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, reply)
}

func (s *recordingServer) Last() capturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func setupClient(t *testing.T, reply string) (*Client, *recordingServer) {
	t.Helper()
	rec := &recordingServer{reply: reply}
	ts := httptest.NewTLSServer(rec)
	t.Cleanup(ts.Close)

	c, err := New(ts.URL, "secret", "token", WithHTTPClient(ts.Client()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c, rec
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

const successReply = `{"status":"success","data":{"username":"user","token":"T","metadata":{}},"call":"login"}`

func TestNew_RequiresHTTPS(t *testing.T) {
	t.Parallel()

	// plain http is rejected
	_, err := New("http://sso.test", "secret", "token")
	if !errors.Is(err, sso.SecureServerURLRequired) {
		t.Fatalf("expected SecureServerURLRequired, got %v", err)
	}

	// explicit opt-out allows it
	c, err := New("http://sso.test", "secret", "token",
		WithInsecureServerURL(), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New with opt-out failed: %v", err)
	}
	if c.URLFor(sso.CallLogin) != "http://sso.test/login" {
		t.Errorf("URLFor(login) = %s", c.URLFor(sso.CallLogin))
	}
}

func TestNew_InvalidURL(t *testing.T) {
	t.Parallel()

	// url without host is rejected
	if _, err := New("https://", "s", "t"); err == nil {
		t.Error("expected error for url without host")
	}
}

func TestNormalizeServerURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://sso.test", "https://sso.test/"},
		{"https://sso.test/", "https://sso.test/"},
		{"https://sso.test/api//", "https://sso.test/api/"},
		{"https://sso.test/index.php?action=", "https://sso.test/index.php?action="},
		{"https://sso.test/index.php?action=/", "https://sso.test/index.php?action="},
	}

	for _, tt := range tests {
		if got := NormalizeServerURL(tt.in); got != tt.want {
			t.Errorf("NormalizeServerURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCalls_RequestShape(t *testing.T) {
	t.Parallel()
	c, rec := setupClient(t, successReply)
	ctx := context.Background()

	tests := []struct {
		name   string
		invoke func() *sso.Response
		call   sso.Call
		method string
		auth   string
		body   map[string]any
	}{
		{"connect", func() *sso.Response { return c.Connect(ctx) },
			sso.CallConnect, http.MethodGet, "", nil},
		{"register", func() *sso.Response { return c.Register(ctx, "user", "pass") },
			sso.CallRegister, http.MethodPost, "", map[string]any{"authorization": "dXNlcjpwYXNz"}},
		{"deleteUser", func() *sso.Response { return c.DeleteUser(ctx, "user") },
			sso.CallDeleteUser, http.MethodPost, "", map[string]any{"username": "user"}},
		{"login", func() *sso.Response { return c.Login(ctx, "user", "pass") },
			sso.CallLogin, http.MethodPost, "Basic dXNlcjpwYXNz", nil},
		{"validateToken", func() *sso.Response { return c.ValidateToken(ctx, "user", "token") },
			sso.CallValidateToken, http.MethodGet, "Bearer dXNlcjp0b2tlbg==", nil},
		{"revokeToken", func() *sso.Response { return c.RevokeToken(ctx, "user", "token") },
			sso.CallRevokeToken, http.MethodPost, "Bearer dXNlcjp0b2tlbg==", nil},
		{"generateLoginUrl", func() *sso.Response { return c.GenerateLoginURL(ctx) },
			sso.CallGenerateLoginURL, http.MethodGet, "", nil},
		{"generateRegisterUrl", func() *sso.Response { return c.GenerateRegisterURL(ctx) },
			sso.CallGenerateRegisterURL, http.MethodGet, "", nil},
		{"registerWithContext", func() *sso.Response {
			return c.RegisterWithContext(ctx, "user", "pass", sso.Context{"a": "b"})
		}, sso.CallRegisterWithContext, http.MethodPost, "",
			map[string]any{"authorization": "dXNlcjpwYXNz", "context": map[string]any{"a": "b"}}},
		{"updateContext", func() *sso.Response {
			return c.UpdateContext(ctx, "user", "token", sso.Context{"a": "b"})
		}, sso.CallUpdateContext, http.MethodPost, "Bearer dXNlcjp0b2tlbg==",
			map[string]any{"context": map[string]any{"a": "b"}}},
	}

	for _, tt := range tests {
		res := tt.invoke()
		got := rec.Last()

		// response is tagged with the attempted call
		if res.Call() != tt.call {
			t.Errorf("%s: response call = %s", tt.name, res.Call())
		}

		// method, path and headers match the call
		if got.Method != tt.method {
			t.Errorf("%s: method = %s, want %s", tt.name, got.Method, tt.method)
		}
		if got.Path != "/"+string(tt.call) {
			t.Errorf("%s: path = %s", tt.name, got.Path)
		}
		if got.Header.Get(sso.HeaderClientSecret) != "secret" || got.Header.Get(sso.HeaderClientToken) != "token" {
			t.Errorf("%s: missing client credential headers: %v", tt.name, got.Header)
		}
		if got.Header.Get("Authorization") != tt.auth {
			t.Errorf("%s: authorization = %q, want %q", tt.name, got.Header.Get("Authorization"), tt.auth)
		}

		// body carries exactly the expected fields
		if len(got.Body) != len(tt.body) {
			t.Errorf("%s: body = %v, want %v", tt.name, got.Body, tt.body)
		}
		for k, want := range tt.body {
			gotJSON, _ := json.Marshal(got.Body[k])
			wantJSON, _ := json.Marshal(want)
			if string(gotJSON) != string(wantJSON) {
				t.Errorf("%s: body[%s] = %s, want %s", tt.name, k, gotJSON, wantJSON)
			}
		}
	}
}

func TestLogin_DecodesEnvelope(t *testing.T) {
	t.Parallel()
	c, _ := setupClient(t, successReply)

	// success payload is available through the envelope
	res := c.Login(context.Background(), "user", "pass")
	if !res.IsSuccess() {
		t.Fatalf("expected success, got %v", res.ToWireMap())
	}
	if res.GetString("token") != "T" {
		t.Errorf("token = %q", res.GetString("token"))
	}
}

func TestErrorEnvelope_Decoded(t *testing.T) {
	t.Parallel()
	reply := `{"status":"error","data":{"message":"Token validation failed","code":1070},"call":"validateToken"}`
	c, _ := setupClient(t, reply)

	// server error envelopes keep their code
	res := c.ValidateToken(context.Background(), "user", "stale")
	if !res.Is(sso.ValidateTokenFailed) {
		t.Errorf("expected ValidateTokenFailed, got %v", res.ToWireMap())
	}
	if res.ErrorMessage() != "Token validation failed" {
		t.Errorf("message = %q", res.ErrorMessage())
	}
}

func TestResponse_TaggedWithAttemptedCall(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply string
	}{
		{"echoed other call", `{"status":"success","data":{},"call":"login"}`},
		{"no call", `{"status":"success","data":{}}`},
		{"unknown call", `{"status":"success","data":{},"call":"logout"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := setupClient(t, tt.reply)

			// the envelope carries the call the client made
			res := c.Connect(context.Background())
			if !res.IsSuccess() || res.Call() != sso.CallConnect {
				t.Errorf("got %v, want success for connect", res.ToWireMap())
			}
		})
	}
}

func TestInvalidResponse_Synthesized(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply string
	}{
		{"not json", "<html>oops</html>"},
		{"json array", `[1,2,3]`},
		{"bad status", `{"status":"weird","data":{},"call":"connect"}`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := setupClient(t, tt.reply)
			c.log = quietLogger()

			// undecodable body becomes a code 0 envelope with the raw body
			res := c.Connect(context.Background())
			if !res.IsError() || res.Call() != sso.CallConnect {
				t.Fatalf("expected error envelope for connect, got %v", res.ToWireMap())
			}
			code, ok := res.ErrorCode()
			if !ok || code != sso.CodeClientFailure {
				t.Errorf("code = %d, want 0", code)
			}
			if res.ErrorMessage() != MessageInvalidResponse {
				t.Errorf("message = %q", res.ErrorMessage())
			}
			if res.Get("response") != tt.reply {
				t.Errorf("response = %v, want %q", res.Get("response"), tt.reply)
			}
		})
	}
}

func TestTransportFailure_Synthesized(t *testing.T) {
	t.Parallel()
	ts := httptest.NewTLSServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c, err := New(url, "secret", "token",
		WithTimeouts(200*time.Millisecond, 500*time.Millisecond),
		WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// unreachable server yields "Could not connect" with code 0
	res := c.Login(context.Background(), "user", "pass")
	if !res.IsError() || res.Call() != sso.CallLogin {
		t.Fatalf("expected login error envelope, got %v", res.ToWireMap())
	}
	if code, _ := res.ErrorCode(); code != sso.CodeClientFailure {
		t.Errorf("code = %d, want 0", code)
	}
	if res.ErrorMessage() != MessageCouldNotConnect {
		t.Errorf("message = %q", res.ErrorMessage())
	}
}

func TestQueryStyleRouting(t *testing.T) {
	t.Parallel()
	rec := &recordingServer{reply: successReply}
	ts := httptest.NewTLSServer(rec)
	t.Cleanup(ts.Close)

	c, err := New(ts.URL+"/sso?action=", "secret", "token", WithHTTPClient(ts.Client()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// call name is appended to the query parameter
	c.ValidateToken(context.Background(), "user", "token")
	got := rec.Last()
	if got.Path != "/sso" || got.Query != "action=validateToken" {
		t.Errorf("request = %s?%s", got.Path, got.Query)
	}
}

func TestWithHeaderNames(t *testing.T) {
	t.Parallel()
	rec := &recordingServer{reply: successReply}
	ts := httptest.NewTLSServer(rec)
	t.Cleanup(ts.Close)

	c, err := New(ts.URL, "secret", "token",
		WithHTTPClient(ts.Client()),
		WithHeaderNames("SsoPhp-Client-Secret", "SsoPhp-Client-Token"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// custom header names are used
	c.Connect(context.Background())
	got := rec.Last()
	if got.Header.Get("SsoPhp-Client-Secret") != "secret" {
		t.Errorf("custom secret header missing: %v", got.Header)
	}
}

func TestCodecInterop(t *testing.T) {
	t.Parallel()
	c, rec := setupClient(t, successReply)

	// the server side decodes what the client encodes
	c.Login(context.Background(), "alice", "p:w")
	creds, err := authorization.DecodeHeader(rec.Last().Header.Get("Authorization"))
	if err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	if creds.Identity != "alice" || creds.Secret != "p:w" {
		t.Errorf("got %+v", creds)
	}
}
