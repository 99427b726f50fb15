// Package client calls a single-sign-on server on behalf of one application.
//
// Every call returns an *sso.Response and never an error. Transport failures
// and unreadable responses are reported as error envelopes with the code
// sso.CodeClientFailure (0), so callers only ever branch on the envelope.
//
// # Quick Start
//
// Create a client with the application's credentials and the server URL:
//
//	import (
//	    "git.sr.ht/~jakintosh/sso/pkg/client"
//	    "git.sr.ht/~jakintosh/sso/pkg/sso"
//	)
//
//	c, err := client.New(
//	    "https://sso.example.com/api", // server base URL
//	    "app-secret",                  // client secret
//	    "app-token",                   // client token
//	)
//	if err != nil {
//	    log.Fatal(err) // non-https URL, see below
//	}
//
// # Sessions
//
// Log a user in, keep the token, and validate it on later requests:
//
//	res := c.Login(ctx, "alice", password)
//	if res.IsError() {
//	    code, _ := res.ErrorCode()
//	    return fmt.Errorf("login failed: %s (%d)", res.ErrorMessage(), code)
//	}
//	token := res.GetString("token")
//
//	if c.ValidateToken(ctx, "alice", token).Is(sso.ValidateTokenFailed) {
//	    // token was revoked or replaced by a newer login
//	}
//
// Only one token per user is valid at a time. Logging in again replaces the
// previous token.
//
// # Server URLs
//
// The call name is appended to the base URL. A trailing slash is added
// unless the URL ends in "=", which supports servers that route on a query
// parameter:
//
//	client.New("https://example.com/sso.php?action=", secret, token)
//	// login -> https://example.com/sso.php?action=login
//
// # Transport Security
//
// Client credentials and passwords are sent with every request, so New
// rejects URLs that are not https with an error wrapping
// sso.SecureServerURLRequired. For local development the check can be
// disabled with WithInsecureServerURL, which logs a warning.
//
// # Timeouts
//
// The default transport waits 5 seconds to connect and 10 seconds for the
// whole call. Use WithTimeouts to change them or WithHTTPClient to supply a
// transport; the context passed to each call is honored either way.
package client
