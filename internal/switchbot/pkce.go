package switchbot

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// verifierBytes of entropy encode to a 64 character verifier, inside the
// 43-128 range RFC 7636 allows.
const verifierBytes = 48

// GenerateCodeVerifier returns a random PKCE code verifier. Base64url output
// uses only unreserved characters, so no further filtering is needed.
func GenerateCodeVerifier() (string, error) {
	b := make([]byte, verifierBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ComputeCodeChallenge computes the S256 code challenge from a code verifier
// per RFC 7636 Section 4.2: BASE64URL(SHA256(code_verifier))
func ComputeCodeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
