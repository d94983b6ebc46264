package callbackdispatch

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// sign computes the hex-encoded HMAC-SHA256 signature of body under secret,
// sent as the X-Webhook-Signature header so a receiver can verify the
// payload's authenticity and integrity (spec.md §4.6). No third-party HMAC
// library exists anywhere in the retrieved example set; crypto/hmac and
// crypto/sha256 are the standard, and only, idiomatic way to do this in Go.
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
