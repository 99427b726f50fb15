package sso

import (
	"errors"
	"fmt"
)

// Kind is one entry of the closed error taxonomy. Its value is the wire code.
type Kind int

const (
	InvalidStatusForResponse   Kind = 1000
	ClientCredentialsInvalid   Kind = 1010
	NoAuthorizationHeader      Kind = 1020
	InvalidAuthorizationHeader Kind = 1030
	RegisterUserFailed         Kind = 1040
	DeleteUserFailed           Kind = 1050
	LoginUserFailed            Kind = 1060
	ValidateTokenFailed        Kind = 1070
	RevokeTokenFailed          Kind = 1090
	SecureServerURLRequired    Kind = 1100

	LoginURLGenerationFailed          Kind = 3000
	LoginURLGenerationNotSupported    Kind = 3010
	RegisterURLGenerationFailed       Kind = 3020
	RegisterURLGenerationNotSupported Kind = 3030

	UpdateContextFailed             Kind = 5000
	UpdateContextNotSupported       Kind = 5010
	RegisterWithContextFailed       Kind = 5020
	RegisterWithContextNotSupported Kind = 5030
)

// CodeClientFailure marks envelopes synthesized by the client when no valid
// server response was available. It is never produced by a server.
const CodeClientFailure = 0

// Category groups kinds by the capability they belong to.
type Category int

const (
	CategoryGeneral Category = iota
	CategoryExternal
	CategoryContextual
)

func (c Category) String() string {
	switch c {
	case CategoryExternal:
		return "external"
	case CategoryContextual:
		return "contextual"
	default:
		return "general"
	}
}

var kindMessages = map[Kind]string{
	InvalidStatusForResponse:   "Invalid status for response",
	ClientCredentialsInvalid:   "Client credentials invalid",
	NoAuthorizationHeader:      "No authorization",
	InvalidAuthorizationHeader: "Invalid authorization",
	RegisterUserFailed:         "Register failed",
	DeleteUserFailed:           "Delete user failed",
	LoginUserFailed:            "Login failed",
	ValidateTokenFailed:        "Token validation failed",
	RevokeTokenFailed:          "Token revocation failed",
	SecureServerURLRequired:    "Secure server url required",

	LoginURLGenerationFailed:          "Login url generation failed",
	LoginURLGenerationNotSupported:    "Login url generation not supported by provider",
	RegisterURLGenerationFailed:       "Register url generation failed",
	RegisterURLGenerationNotSupported: "Register url generation not supported by provider",

	UpdateContextFailed:             "Update context failed",
	UpdateContextNotSupported:       "Update context not supported by provider",
	RegisterWithContextFailed:       "Register with context failed",
	RegisterWithContextNotSupported: "Register with context not supported by provider",
}

// KindForCode looks up the taxonomy entry for a wire code.
func KindForCode(code int) (Kind, bool) {
	k := Kind(code)
	_, ok := kindMessages[k]
	return k, ok
}

func (k Kind) Code() int {
	return int(k)
}

// Message returns the default message for the kind.
func (k Kind) Message() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown error %d", int(k))
}

func (k Kind) Category() Category {
	switch {
	case k >= 5000:
		return CategoryContextual
	case k >= 3000:
		return CategoryExternal
	default:
		return CategoryGeneral
	}
}

// NotSupported reports whether the kind signals a missing provider capability.
func (k Kind) NotSupported() bool {
	switch k {
	case LoginURLGenerationNotSupported,
		RegisterURLGenerationNotSupported,
		UpdateContextNotSupported,
		RegisterWithContextNotSupported:
		return true
	}
	return false
}

func (k Kind) Error() string {
	return k.Message()
}

// For attributes the kind to a call.
func (k Kind) For(call Call) *CallError {
	return &CallError{
		Call:    call,
		Kind:    k,
		Message: k.Message(),
	}
}

// CallError is a taxonomy error raised while serving a specific call.
type CallError struct {
	Call    Call
	Kind    Kind
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Call, e.Message, e.Kind.Code())
}

func (e *CallError) Unwrap() error {
	return e.Kind
}

func (e *CallError) Code() int {
	return e.Kind.Code()
}

// AsCallError unwraps err to a *CallError when it holds one.
func AsCallError(err error) (*CallError, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
