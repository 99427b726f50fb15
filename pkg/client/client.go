package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"git.sr.ht/~jakintosh/sso/pkg/sso"
	"github.com/sirupsen/logrus"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultTimeout        = 10 * time.Second

	maxResponseBytes = 1 << 20
)

// Messages of the envelopes the client synthesizes with sso.CodeClientFailure.
const (
	MessageCouldNotConnect = "Could not connect"
	MessageInvalidResponse = "Response was not valid"
)

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues protocol calls against one server on behalf of one
// application. It is safe for concurrent use.
type Client struct {
	baseURL      string
	clientSecret string
	clientToken  string
	secretHeader string
	tokenHeader  string

	httpClient     Doer
	connectTimeout time.Duration
	timeout        time.Duration
	insecure       bool
	log            *logrus.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the transport. Timeouts set with WithTimeouts are
// ignored when a custom Doer is given.
func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		c.httpClient = doer
	}
}

func WithTimeouts(connect, total time.Duration) Option {
	return func(c *Client) {
		c.connectTimeout = connect
		c.timeout = total
	}
}

func WithLogger(log *logrus.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithHeaderNames overrides the credential header names.
func WithHeaderNames(secretHeader, tokenHeader string) Option {
	return func(c *Client) {
		c.secretHeader = secretHeader
		c.tokenHeader = tokenHeader
	}
}

// WithInsecureServerURL allows a server URL without TLS. Credentials and
// passwords then travel in clear text; a warning is logged at construction.
func WithInsecureServerURL() Option {
	return func(c *Client) {
		c.insecure = true
	}
}

// New builds a client for serverURL. A URL that is not https is rejected
// with an error wrapping sso.SecureServerURLRequired unless
// WithInsecureServerURL is given.
func New(
	serverURL string,
	clientSecret string,
	clientToken string,
	opts ...Option,
) (
	*Client,
	error,
) {
	c := &Client{
		clientSecret:   clientSecret,
		clientToken:    clientToken,
		secretHeader:   sso.HeaderClientSecret,
		tokenHeader:    sso.HeaderClientToken,
		connectTimeout: DefaultConnectTimeout,
		timeout:        DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logrus.New()
	}

	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: missing host", serverURL)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		if !c.insecure {
			return nil, fmt.Errorf("%w: %s", sso.SecureServerURLRequired, serverURL)
		}
		c.log.WithField("url", serverURL).
			Warn("INSECURE: sso server url is not https; client credentials and passwords will be sent in clear text")
	}
	c.baseURL = NormalizeServerURL(serverURL)

	if c.httpClient == nil {
		c.httpClient = newHTTPClient(c.connectTimeout, c.timeout)
	}

	return c, nil
}

// NormalizeServerURL trims trailing slashes and appends a single one, unless
// the URL ends in "=" for query-style routing such as "/sso?action=".
func NormalizeServerURL(serverURL string) string {
	base := strings.TrimRight(serverURL, "/")
	if strings.HasSuffix(base, "=") {
		return base
	}
	return base + "/"
}

// URLFor returns the request URL of call.
func (c *Client) URLFor(call sso.Call) string {
	return c.baseURL + string(call)
}

func newHTTPClient(connect, total time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: connect}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = connect
	return &http.Client{
		Transport: transport,
		Timeout:   total,
	}
}

// do performs one call. It never fails: transport and decoding problems come
// back as error envelopes with sso.CodeClientFailure.
func (c *Client) do(
	ctx context.Context,
	call sso.Call,
	authHeader string,
	body map[string]any,
) *sso.Response {
	logger := c.log.WithField("call", call)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			logger.WithError(err).Error("failed to encode request body")
			return sso.Failure(call, MessageCouldNotConnect, sso.CodeClientFailure, nil)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method(), c.URLFor(call), reader)
	if err != nil {
		logger.WithError(err).Error("failed to build request")
		return sso.Failure(call, MessageCouldNotConnect, sso.CodeClientFailure, nil)
	}
	req.Header.Set(c.secretHeader, c.clientSecret)
	req.Header.Set(c.tokenHeader, c.clientToken)
	req.Header.Set("Accept", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger.WithField("url", req.URL.String()).Debug("sending sso request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.WithError(err).Debug("sso request failed")
		return sso.Failure(call, MessageCouldNotConnect, sso.CodeClientFailure, nil)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		logger.WithError(err).Debug("failed to read sso response")
		return sso.Failure(call, MessageCouldNotConnect, sso.CodeClientFailure, nil)
	}

	return decodeResponse(call, raw, logger)
}

func decodeResponse(
	call sso.Call,
	raw []byte,
	logger *logrus.Entry,
) *sso.Response {
	invalid := func(err error) *sso.Response {
		logger.WithError(err).Error("invalid sso response")
		return sso.Failure(call, MessageInvalidResponse, sso.CodeClientFailure, map[string]any{
			"response": string(raw),
		})
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var wire map[string]any
	if err := dec.Decode(&wire); err != nil {
		return invalid(err)
	}
	if wire == nil {
		return invalid(sso.ErrMalformedEnvelope)
	}

	// tag with the attempted call regardless of what the server echoed
	wire["call"] = string(call)
	res, err := sso.FromWireMap(wire)
	if err != nil {
		return invalid(err)
	}
	return res
}
