package random

import (
	"crypto/rand"
	"encoding/base64"
)

// State returns a URL-safe nonce for the OAuth authorize redirect.
func State() string {
	b := make([]byte, 24)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
