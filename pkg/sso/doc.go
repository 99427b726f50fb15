// Package sso defines the shared vocabulary of the single-sign-on protocol:
// the call names, the response envelope, the error taxonomy, and the
// capability interfaces a provider implements.
//
// Both sides of the protocol build on this package. The server package turns
// provider decisions into envelopes, and the client package decodes envelopes
// returned over the wire.
//
// # Calls
//
// Every exchange is one [Call]. A call is either read-only (served with GET)
// or mutating (served with POST):
//
//	for _, call := range sso.Calls() {
//	    fmt.Println(call, call.Method())
//	}
//
// # Envelopes
//
// A [Response] is built once and never modified. Success envelopes carry the
// call payload in their data, error envelopes additionally carry a message and
// a numeric code:
//
//	res := sso.Success(sso.CallLogin, map[string]any{
//	    "username": "alice",
//	    "token":    token,
//	    "metadata": map[string]any{},
//	})
//
//	failed := sso.ErrorResponse(sso.LoginUserFailed.For(sso.CallLogin))
//	code, _ := failed.ErrorCode() // 1060
//
// The wire form is a JSON object with the keys "status", "data" and "call".
// [Response.ToWireMap] and [FromWireMap] convert between the two forms, and
// [Response] implements json.Marshaler and json.Unmarshaler.
//
// # Errors
//
// The taxonomy is a closed set of [Kind] values with stable numeric codes.
// A Kind is itself an error, so failures can be matched with errors.Is:
//
//	if errors.Is(err, sso.ClientCredentialsInvalid) {
//	    // reject the calling application
//	}
//
// # Providers
//
// A [Provider] makes all business decisions. Optional behavior is expressed
// structurally: a provider that also implements [ExternalProvider] serves the
// URL generation calls, and one that implements [ContextualProvider] serves
// the context calls.
package sso
