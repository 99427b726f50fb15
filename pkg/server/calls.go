package server

import (
	"context"
	"errors"

	"git.sr.ht/~jakintosh/sso/pkg/authorization"
	"git.sr.ht/~jakintosh/sso/pkg/sso"
)

func (s *Server) Connect(
	ctx context.Context,
	req Request,
) *sso.Response {
	const call = sso.CallConnect
	if res := s.authenticateClient(ctx, call, req); res != nil {
		return res
	}

	return s.succeed(ctx, call,
		map[string]any{
			"clientSecret": req.ClientSecret,
			"clientToken":  req.ClientToken,
		},
		map[string]any{},
	)
}

func (s *Server) Register(
	ctx context.Context,
	req Request,
) *sso.Response {
	const call = sso.CallRegister
	if res := s.authenticateClient(ctx, call, req); res != nil {
		return res
	}

	username, kind, ok := s.register(ctx, call, req.Body.Authorization)
	if !ok {
		return fail(call, kind)
	}

	return s.succeed(ctx, call,
		map[string]any{"username": username},
		map[string]any{"username": username},
	)
}

func (s *Server) DeleteUser(
	ctx context.Context,
	req Request,
) *sso.Response {
	const call = sso.CallDeleteUser
	if res := s.authenticateClient(ctx, call, req); res != nil {
		return res
	}

	username := req.Body.Username
	if username == "" {
		return fail(call, sso.DeleteUserFailed)
	}

	ok, err := s.provider.DeleteUser(ctx, username)
	if err != nil {
		s.logProviderErr(call, "delete user", err)
	}
	if err != nil || !ok {
		return fail(call, sso.DeleteUserFailed)
	}

	return s.succeed(ctx, call,
		map[string]any{"username": username},
		map[string]any{"username": username},
	)
}

func (s *Server) Login(
	ctx context.Context,
	req Request,
) *sso.Response {
	const call = sso.CallLogin
	if res := s.authenticateClient(ctx, call, req); res != nil {
		return res
	}

	creds, kind, ok := decodeHeader(req.Authorization)
	if !ok {
		return fail(call, kind)
	}

	ok, err := s.provider.LoginUser(ctx, creds.Identity, creds.Secret)
	if err != nil {
		s.logProviderErr(call, "login user", err)
	}
	if err != nil || !ok {
		return fail(call, sso.LoginUserFailed)
	}

	token, err := s.provider.GenerateToken(ctx, creds.Identity)
	if err != nil {
		s.logProviderErr(call, "generate token", err)
	}
	if err != nil || token == "" {
		return fail(call, sso.LoginUserFailed)
	}

	return s.succeed(ctx, call,
		map[string]any{"username": creds.Identity},
		map[string]any{
			"username": creds.Identity,
			"token":    token,
		},
	)
}

func (s *Server) ValidateToken(
	ctx context.Context,
	req Request,
) *sso.Response {
	const call = sso.CallValidateToken
	if res := s.authenticateClient(ctx, call, req); res != nil {
		return res
	}

	creds, kind, ok := decodeHeader(req.Authorization)
	if !ok {
		return fail(call, kind)
	}

	if !s.validToken(ctx, call, creds) {
		return fail(call, sso.ValidateTokenFailed)
	}

	return s.succeed(ctx, call,
		map[string]any{"username": creds.Identity},
		map[string]any{
			"username": creds.Identity,
			"token":    creds.Secret,
		},
	)
}

func (s *Server) RevokeToken(
	ctx context.Context,
	req Request,
) *sso.Response {
	const call = sso.CallRevokeToken
	if res := s.authenticateClient(ctx, call, req); res != nil {
		return res
	}

	creds, kind, ok := decodeHeader(req.Authorization)
	if !ok {
		return fail(call, kind)
	}

	ok, err := s.provider.RevokeToken(ctx, creds.Identity, creds.Secret)
	if err != nil {
		s.logProviderErr(call, "revoke token", err)
	}
	if err != nil || !ok {
		return fail(call, sso.RevokeTokenFailed)
	}

	return s.succeed(ctx, call,
		map[string]any{"username": creds.Identity},
		map[string]any{"username": creds.Identity},
	)
}

func (s *Server) GenerateLoginURL(
	ctx context.Context,
	req Request,
) *sso.Response {
	const call = sso.CallGenerateLoginURL
	if s.external == nil {
		return fail(call, sso.LoginURLGenerationNotSupported)
	}
	return s.generateURL(ctx, call, req, s.external.GenerateLoginURL, sso.LoginURLGenerationFailed)
}

func (s *Server) GenerateRegisterURL(
	ctx context.Context,
	req Request,
) *sso.Response {
	const call = sso.CallGenerateRegisterURL
	if s.external == nil {
		return fail(call, sso.RegisterURLGenerationNotSupported)
	}
	return s.generateURL(ctx, call, req, s.external.GenerateRegisterURL, sso.RegisterURLGenerationFailed)
}

// RegisterWithContext registers the user and then stores the body context.
// The two steps are not atomic: when storing the context fails the user
// stays registered and the call still reports RegisterWithContextFailed.
func (s *Server) RegisterWithContext(
	ctx context.Context,
	req Request,
) *sso.Response {
	const call = sso.CallRegisterWithContext
	if s.contextual == nil {
		return fail(call, sso.RegisterWithContextNotSupported)
	}
	if res := s.authenticateClient(ctx, call, req); res != nil {
		return res
	}

	username, _, ok := s.register(ctx, call, req.Body.Authorization)
	if !ok {
		return fail(call, sso.RegisterWithContextFailed)
	}

	userCtx := bodyContext(req)
	ok, err := s.contextual.UpdateContext(ctx, username, userCtx)
	if err != nil {
		s.logProviderErr(call, "update context", err)
	}
	if err != nil || !ok {
		s.log.WithField("username", username).Warn("context not stored for registered user")
		return fail(call, sso.RegisterWithContextFailed)
	}

	return s.succeed(ctx, call,
		map[string]any{"username": username},
		map[string]any{
			"username": username,
			"context":  userCtx,
		},
	)
}

func (s *Server) UpdateContext(
	ctx context.Context,
	req Request,
) *sso.Response {
	const call = sso.CallUpdateContext
	if s.contextual == nil {
		return fail(call, sso.UpdateContextNotSupported)
	}
	if res := s.authenticateClient(ctx, call, req); res != nil {
		return res
	}

	// every sub-step, header decoding included, reports UpdateContextFailed
	creds, _, ok := decodeHeader(req.Authorization)
	if !ok {
		return fail(call, sso.UpdateContextFailed)
	}

	if !s.validToken(ctx, call, creds) {
		return fail(call, sso.UpdateContextFailed)
	}

	userCtx := bodyContext(req)
	ok, err := s.contextual.UpdateContext(ctx, creds.Identity, userCtx)
	if err != nil {
		s.logProviderErr(call, "update context", err)
	}
	if err != nil || !ok {
		return fail(call, sso.UpdateContextFailed)
	}

	return s.succeed(ctx, call,
		map[string]any{"username": creds.Identity},
		map[string]any{
			"username": creds.Identity,
			"context":  userCtx,
		},
	)
}

func (s *Server) authenticateClient(
	ctx context.Context,
	call sso.Call,
	req Request,
) *sso.Response {
	ok, err := s.provider.ValidateCredentials(ctx, req.ClientSecret, req.ClientToken)
	if err != nil {
		s.logProviderErr(call, "validate credentials", err)
	}
	if err != nil || !ok {
		return fail(call, sso.ClientCredentialsInvalid)
	}
	return nil
}

// register runs the shared register steps and returns the failure kind
// when they do not succeed.
func (s *Server) register(
	ctx context.Context,
	call sso.Call,
	encoded string,
) (
	string,
	sso.Kind,
	bool,
) {
	if encoded == "" {
		return "", sso.NoAuthorizationHeader, false
	}
	creds, err := authorization.DecodeValue(encoded)
	if err != nil {
		return "", sso.InvalidAuthorizationHeader, false
	}

	ok, err := s.provider.RegisterUser(ctx, creds.Identity, creds.Secret)
	if err != nil {
		s.logProviderErr(call, "register user", err)
	}
	if err != nil || !ok {
		return "", sso.RegisterUserFailed, false
	}
	return creds.Identity, 0, true
}

func (s *Server) validToken(
	ctx context.Context,
	call sso.Call,
	creds authorization.Credentials,
) bool {
	ok, err := s.provider.ValidateToken(ctx, creds.Identity, creds.Secret)
	if err != nil {
		s.logProviderErr(call, "validate token", err)
		return false
	}
	return ok
}

func (s *Server) generateURL(
	ctx context.Context,
	call sso.Call,
	req Request,
	generate func(context.Context) (string, error),
	failed sso.Kind,
) *sso.Response {
	if res := s.authenticateClient(ctx, call, req); res != nil {
		return res
	}

	url, err := generate(ctx)
	if err != nil {
		s.logProviderErr(call, "generate url", err)
	}
	if err != nil || url == "" {
		return fail(call, failed)
	}

	return s.succeed(ctx, call,
		map[string]any{"url": url},
		map[string]any{"url": url},
	)
}

// succeed attaches the provider metadata for call to payload. Metadata is
// always requested; a failing hook yields empty metadata.
func (s *Server) succeed(
	ctx context.Context,
	call sso.Call,
	metadataData map[string]any,
	payload map[string]any,
) *sso.Response {
	md, err := s.provider.MetadataForCall(ctx, call, metadataData)
	if err != nil {
		s.logProviderErr(call, "metadata", err)
		md = nil
	}
	if md == nil {
		md = map[string]any{}
	}
	payload["metadata"] = md
	return sso.Success(call, payload)
}

func decodeHeader(value string) (authorization.Credentials, sso.Kind, bool) {
	if value == "" {
		return authorization.Credentials{}, sso.NoAuthorizationHeader, false
	}
	creds, err := authorization.DecodeHeader(value)
	if err != nil {
		if errors.Is(err, sso.NoAuthorizationHeader) {
			return creds, sso.NoAuthorizationHeader, false
		}
		return creds, sso.InvalidAuthorizationHeader, false
	}
	return creds, 0, true
}

func bodyContext(req Request) sso.Context {
	if req.Body.Context == nil {
		return sso.Context{}
	}
	return req.Body.Context
}

func fail(call sso.Call, kind sso.Kind) *sso.Response {
	return sso.ErrorResponse(kind.For(call))
}
