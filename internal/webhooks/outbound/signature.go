package outboundwebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Delivery headers carried on every outbound POST. Receivers verify the
// signature by recomputing it over "<timestamp>.<body>" with their secret.
const (
	HeaderSignature  = "X-Modhu-Signature"
	HeaderEvent      = "X-Modhu-Event"
	HeaderDeliveryID = "X-Modhu-Delivery"
	HeaderTimestamp  = "X-Modhu-Timestamp"

	signaturePrefix = "sha256="
)

// Sign computes the delivery signature for the payload at the given moment.
func Sign(secret string, sentAt time.Time, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(sentAt.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature in constant time. Exported for
// subscriber-side verification and the dispatcher tests.
func VerifySignature(secret string, sentAt time.Time, payload []byte, signature string) bool {
	expected := Sign(secret, sentAt, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
