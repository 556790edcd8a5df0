package paramsession

import (
	"errors"
	"strings"
)

// ErrMalformedToken is returned when a wire token cannot be split into a
// public id and a non-empty secret.
var ErrMalformedToken = errors.New("malformed session token")

const tokenSeparator = ":"

// Encode renders the wire form "<public_id>:<secret>".
func Encode(publicID, secret string) string {
	return publicID + tokenSeparator + secret
}

// Decode splits a wire token on its first colon. Any further colons belong to
// the secret. It never touches storage.
func Decode(wire string) (publicID, secret string, err error) {
	publicID, secret, found := strings.Cut(wire, tokenSeparator)
	if !found || secret == "" {
		return "", "", ErrMalformedToken
	}
	return publicID, secret, nil
}
