package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the HMAC of the raw body.
const SignatureHeader = "X-Merge-Webhook-Signature"

// Verifier checks HMAC-SHA256 signatures over raw webhook bodies. The
// provider sends base64url; standard base64 and hex are also accepted.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier. An empty secret disables verification.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// Sign returns the base64url signature of body.
func (v *Verifier) Sign(body []byte) string {
	return base64.URLEncoding.EncodeToString(v.mac(body))
}

// Verify reports whether signature matches body. It always succeeds when
// verification is disabled and always fails for a blank signature
// otherwise.
func (v *Verifier) Verify(body []byte, signature string) bool {
	if !v.Enabled() {
		return true
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	expected := v.mac(body)
	for _, got := range decodeSignature(signature) {
		if hmac.Equal(got, expected) {
			return true
		}
	}
	return false
}

func (v *Verifier) mac(body []byte) []byte {
	m := hmac.New(sha256.New, v.secret)
	m.Write(body)
	return m.Sum(nil)
}

func decodeSignature(sig string) [][]byte {
	var out [][]byte
	for _, enc := range []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	} {
		if b, err := enc.DecodeString(sig); err == nil {
			out = append(out, b)
		}
	}
	if b, err := hex.DecodeString(sig); err == nil {
		out = append(out, b)
	}
	return out
}
