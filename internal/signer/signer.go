// Package signer produces the HMAC-SHA256 request signatures LinkHub verifies.
//
// The signature covers the literal bytes transmitted. Callers must POST the
// same byte slice they passed to Sign; any re-serialization in between breaks
// verification.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
)

// Header names of the signing protocol.
const (
	HeaderVersion   = "X-Version"
	HeaderKeyPrefix = "X-Key-Prefix"
	HeaderSignature = "X-Signature"
)

// Sign computes the lowercase-hex HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced by Sign in constant time.
func Verify(payload []byte, signature, secret string) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(sig, mac.Sum(nil))
}

// Headers assembles the outgoing request headers for a signed payload. The
// key prefix identifies which secret was used without transmitting it.
func Headers(payload []byte, apiKeyPrefix, signingSecret, protocolVersion string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set(HeaderVersion, protocolVersion)
	h.Set(HeaderKeyPrefix, apiKeyPrefix)
	h.Set(HeaderSignature, Sign(payload, signingSecret))
	return h
}
