package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"

	"github.com/rs/zerolog"
)

var (
	ErrSecretUnavailable  = errors.New("webhook secret is not configured")
	ErrMissingSignature   = errors.New("signature header is required")
	ErrMalformedSignature = errors.New("signature header is not well-formed base64")
	ErrInvalidSignature   = errors.New("invalid signature")
)

// Verifier validates inbound webhook authenticity via HMAC-SHA256 over
// the exact raw request body.
type Verifier struct {
	secret []byte
	logger zerolog.Logger
}

// NewVerifier creates a webhook verifier for the shared secret.
func NewVerifier(secret string, logger zerolog.Logger) *Verifier {
	return &Verifier{secret: []byte(secret), logger: logger}
}

// Verify checks the signature header against HMAC-SHA256(secret, body).
// It fails closed: a missing secret, empty or malformed header, or any
// mismatch yields an error and the caller must treat the request as
// unauthenticated. The comparison is fixed-time regardless of mismatch
// position or operand length.
func (v *Verifier) Verify(body []byte, signatureHeader string) error {
	if len(v.secret) == 0 {
		v.logger.Error().Msg("webhook verification failed: secret unavailable")
		return ErrSecretUnavailable
	}
	if signatureHeader == "" {
		v.logger.Error().Msg("webhook verification failed: missing signature header")
		return ErrMissingSignature
	}
	if !wellFormedBase64(signatureHeader) {
		v.logger.Error().
			Int("header_len", len(signatureHeader)).
			Msg("webhook verification failed: malformed base64 signature")
		return ErrMalformedSignature
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !fixedTimeEqual(expected, signatureHeader) {
		v.logger.Warn().
			Int("expected_len", len(expected)).
			Int("received_len", len(signatureHeader)).
			Int("body_bytes", len(body)).
			Msg("webhook signature mismatch")
		return ErrInvalidSignature
	}
	return nil
}

// wellFormedBase64 checks the standard-alphabet base64 shape: the
// character set [A-Za-z0-9+/] with up to two trailing '=' and length a
// multiple of 4.
func wellFormedBase64(s string) bool {
	if len(s) == 0 || len(s)%4 != 0 {
		return false
	}
	padding := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '=' {
			padding++
			if padding > 2 {
				return false
			}
			continue
		}
		if padding > 0 {
			// '=' only allowed at the end
			return false
		}
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '+', c == '/':
		default:
			return false
		}
	}
	return true
}

// fixedTimeEqual compares two strings in time independent of their
// contents and lengths. Hashing both sides first gives fixed-length
// operands so the comparison cost does not depend on where (or
// whether) the inputs diverge.
func fixedTimeEqual(a, b string) bool {
	ah := sha256.Sum256([]byte(a))
	bh := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ah[:], bh[:]) == 1
}
