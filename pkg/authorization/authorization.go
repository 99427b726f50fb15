// Package authorization encodes and decodes the credential pairs carried in
// Authorization headers and request bodies.
package authorization

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"git.sr.ht/~jakintosh/sso/pkg/sso"
)

type Scheme string

const (
	SchemeNone   Scheme = ""
	SchemeBasic  Scheme = "Basic"
	SchemeBearer Scheme = "Bearer"
)

// Credentials is a decoded identity and its secret. The secret is a password
// under Basic and a token under Bearer.
type Credentials struct {
	Scheme   Scheme
	Identity string
	Secret   string
}

// Encode returns base64("identity:secret") with the standard padded alphabet.
func Encode(identity, secret string) string {
	return base64.StdEncoding.EncodeToString([]byte(identity + ":" + secret))
}

func Basic(identity, password string) string {
	return string(SchemeBasic) + " " + Encode(identity, password)
}

func Bearer(identity, token string) string {
	return string(SchemeBearer) + " " + Encode(identity, token)
}

// DecodeHeader decodes a full header value. A Basic or Bearer prefix is
// required and matched case-insensitively.
func DecodeHeader(value string) (Credentials, error) {
	scheme, rest, ok := cutScheme(value)
	if !ok {
		return Credentials{}, fmt.Errorf("%w: missing scheme", sso.InvalidAuthorizationHeader)
	}
	return decode(scheme, rest)
}

// DecodeValue decodes a bare encoded value. A scheme prefix, if present, is
// stripped first.
func DecodeValue(value string) (Credentials, error) {
	scheme, rest, ok := cutScheme(value)
	if !ok {
		return decode(SchemeNone, strings.TrimSpace(value))
	}
	return decode(scheme, rest)
}

// FromRequest decodes the Authorization header of r.
func FromRequest(r *http.Request) (Credentials, error) {
	value := r.Header.Get("Authorization")
	if value == "" {
		return Credentials{}, sso.NoAuthorizationHeader
	}
	return DecodeHeader(value)
}

func cutScheme(value string) (Scheme, string, bool) {
	value = strings.TrimSpace(value)
	for _, s := range []Scheme{SchemeBasic, SchemeBearer} {
		prefix := string(s) + " "
		if len(value) >= len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
			return s, strings.TrimSpace(value[len(prefix):]), true
		}
	}
	return SchemeNone, value, false
}

func decode(scheme Scheme, encoded string) (Credentials, error) {
	if encoded == "" {
		return Credentials{}, fmt.Errorf("%w: empty value", sso.InvalidAuthorizationHeader)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return Credentials{}, fmt.Errorf("%w: bad encoding", sso.InvalidAuthorizationHeader)
		}
	}

	identity, secret, found := strings.Cut(string(raw), ":")
	if !found {
		return Credentials{}, fmt.Errorf("%w: missing separator", sso.InvalidAuthorizationHeader)
	}

	return Credentials{
		Scheme:   scheme,
		Identity: identity,
		Secret:   secret,
	}, nil
}
