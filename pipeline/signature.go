package pipeline

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature authenticates a webhook delivery: HMAC-SHA256 over the
// exact raw body with the shared secret, formatted sha256=<hex>, compared in
// constant time. Returns false when the secret is unconfigured, the header is
// absent, or anything mismatches. Never panics.
func VerifySignature(secret string, body []byte, signatureHeader string) bool {
	if secret == "" || signatureHeader == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}
