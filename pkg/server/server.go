// Package server implements the protocol side of the single-sign-on exchange.
// It authenticates the calling application, delegates every decision to an
// sso.Provider, and renders the outcome as an sso.Response.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"

	"git.sr.ht/~jakintosh/sso/pkg/sso"
	"github.com/sirupsen/logrus"
)

var ErrUnknownCall = errors.New("unknown call")

// Request holds the inputs of one call. Authorization is the raw header value
// and is empty when the header is absent.
type Request struct {
	ClientSecret  string
	ClientToken   string
	Authorization string
	Body          Body
}

// Body holds the fields a call may read from the request body.
type Body struct {
	Authorization string
	Username      string
	Context       sso.Context
}

type handlerFunc func(context.Context, Request) *sso.Response

// Server dispatches calls to a provider. Capabilities are resolved once in
// New; a Server is safe for concurrent use.
type Server struct {
	provider   sso.Provider
	external   sso.ExternalProvider
	contextual sso.ContextualProvider
	handlers   map[sso.Call]handlerFunc
	log        *logrus.Logger
}

type Option func(*Server)

func WithLogger(log *logrus.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

func New(
	provider sso.Provider,
	opts ...Option,
) *Server {
	s := &Server{provider: provider}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.New()
		s.log.SetOutput(io.Discard)
	}

	if ext, ok := provider.(sso.ExternalProvider); ok {
		s.external = ext
	}
	if ctxp, ok := provider.(sso.ContextualProvider); ok {
		s.contextual = ctxp
	}

	s.handlers = map[sso.Call]handlerFunc{
		sso.CallConnect:             s.Connect,
		sso.CallRegister:            s.Register,
		sso.CallDeleteUser:          s.DeleteUser,
		sso.CallLogin:               s.Login,
		sso.CallValidateToken:       s.ValidateToken,
		sso.CallRevokeToken:         s.RevokeToken,
		sso.CallGenerateLoginURL:    s.GenerateLoginURL,
		sso.CallGenerateRegisterURL: s.GenerateRegisterURL,
		sso.CallRegisterWithContext: s.RegisterWithContext,
		sso.CallUpdateContext:       s.UpdateContext,
	}

	s.log.WithFields(logrus.Fields{
		"external":   s.external != nil,
		"contextual": s.contextual != nil,
	}).Debug("sso server ready")

	return s
}

// Supports reports whether the provider has the capability call requires.
func (s *Server) Supports(call sso.Call) bool {
	switch call {
	case sso.CallGenerateLoginURL, sso.CallGenerateRegisterURL:
		return s.external != nil
	case sso.CallRegisterWithContext, sso.CallUpdateContext:
		return s.contextual != nil
	default:
		return call.Valid()
	}
}

// EnabledCalls lists the calls this server can serve successfully.
func (s *Server) EnabledCalls() []sso.Call {
	var enabled []sso.Call
	for _, call := range sso.Calls() {
		if s.Supports(call) {
			enabled = append(enabled, call)
		}
	}
	return enabled
}

// Handle dispatches by call name. The only non-envelope outcome is
// ErrUnknownCall.
func (s *Server) Handle(
	ctx context.Context,
	call sso.Call,
	req Request,
) (
	*sso.Response,
	error,
) {
	h, ok := s.handlers[call]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCall, call)
	}
	return h(ctx, req), nil
}

func (s *Server) logProviderErr(
	call sso.Call,
	op string,
	err error,
) {
	s.log.WithFields(logrus.Fields{
		"call": call,
		"op":   op,
	}).WithError(err).Warn("provider error")
}
