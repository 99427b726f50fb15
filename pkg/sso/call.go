package sso

import "net/http"

// Call names one protocol verb. The string value is the wire name.
type Call string

const (
	CallConnect             Call = "connect"
	CallRegister            Call = "register"
	CallDeleteUser          Call = "deleteUser"
	CallLogin               Call = "login"
	CallValidateToken       Call = "validateToken"
	CallRevokeToken         Call = "revokeToken"
	CallGenerateLoginURL    Call = "generateLoginUrl"
	CallGenerateRegisterURL Call = "generateRegisterUrl"
	CallRegisterWithContext Call = "registerWithContext"
	CallUpdateContext       Call = "updateContext"
)

// Header names carrying the calling application's credentials.
const (
	HeaderClientSecret = "Sso-Client-Secret"
	HeaderClientToken  = "Sso-Client-Token"
)

var calls = []Call{
	CallConnect,
	CallRegister,
	CallDeleteUser,
	CallLogin,
	CallValidateToken,
	CallRevokeToken,
	CallGenerateLoginURL,
	CallGenerateRegisterURL,
	CallRegisterWithContext,
	CallUpdateContext,
}

// Calls returns every protocol call in a stable order.
func Calls() []Call {
	out := make([]Call, len(calls))
	copy(out, calls)
	return out
}

// ParseCall resolves a wire name to a Call.
func ParseCall(name string) (Call, bool) {
	c := Call(name)
	return c, c.Valid()
}

func (c Call) Valid() bool {
	for _, known := range calls {
		if c == known {
			return true
		}
	}
	return false
}

func (c Call) String() string {
	return string(c)
}

// Method returns the HTTP method the call travels with: GET for read-only
// calls, POST for calls that mutate provider state or carry a body.
func (c Call) Method() string {
	switch c {
	case CallConnect,
		CallValidateToken,
		CallGenerateLoginURL,
		CallGenerateRegisterURL:
		return http.MethodGet
	default:
		return http.MethodPost
	}
}
