package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/softmax/underwriting-gateway/internal/apierr"
)

// SignatureHeader is the inbound request-signing header name (spec §4.3).
const SignatureHeader = "X-Signature"

// WebhookSignatureHeader is the outbound callback-signing header name
// (spec §4.9). Kept distinct from SignatureHeader since inbound requests
// and outbound webhooks are signed with different tenant secrets.
const WebhookSignatureHeader = "X-Softmax-Signature"

// Sign computes base64(HMAC-SHA256(secret, body)), the scheme shared by
// inbound request signing and outbound webhook signing (spec §4.3, §4.9).
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks presented against the expected signature of body
// under secret, in constant time.
func VerifySignature(body []byte, secret, presented string) bool {
	expected := Sign(body, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}

// VerifyInboundSignature enforces spec §4.3's inbound HMAC check: the
// signature header must be present and must match under constant-time
// comparison, or the request is an authentication failure.
func VerifyInboundSignature(body []byte, tenantSecret, presentedSignature string) error {
	if presentedSignature == "" {
		return apierr.Authentication("missing signature header")
	}
	if !VerifySignature(body, tenantSecret, presentedSignature) {
		return apierr.Authentication("HMAC signature mismatch")
	}
	return nil
}
