// Package signing computes and checks the HMAC tags that authenticate
// hosted-session return URLs and inbound webhook bodies.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign returns the hex-encoded HMAC-SHA-256 tag of message under key.
func Sign(message string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether tag is a valid tag for message under key. Some
// transports append trailing slashes to the tag parameter, so they are
// stripped before the constant-time comparison.
func Verify(message string, key []byte, tag string) bool {
	tag = strings.TrimRight(tag, "/")
	expected := Sign(message, key)
	return hmac.Equal([]byte(tag), []byte(expected))
}

// ReturnMessage builds the canonical string that gets signed into a return
// URL: the return path plus the order id, no trailing slash, no other
// query parameters. Any deviation invalidates the tag.
func ReturnMessage(path, orderID string) string {
	return path + "?order_id=" + orderID
}
