package security

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
)

const (
	// SignatureHeader carries the HMAC of the webhook body
	SignatureHeader = "X-Hub-Signature"
	// SignaturePrefix is the algorithm tag GitHub puts in front of the hex
	// digest
	SignaturePrefix = "sha1="
)

var (
	ErrEmptySecret       = errors.New("webhook signature: secret is empty")
	ErrMissingSignature  = errors.New("webhook signature: header is empty")
	ErrSignatureMismatch = errors.New("webhook signature: mismatch")
)

// Sign returns the X-Hub-Signature value for body: "sha1=" followed by the
// hex HMAC-SHA1 of body keyed with secret
func Sign(body, secret []byte) string {
	mac := hmac.New(sha1.New, secret)
	mac.Write(body)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the signature computed over body.
// The comparison runs in constant time. Errors never include the expected
// value
func VerifySignature(body, secret []byte, header string) error {
	if len(secret) == 0 {
		return ErrEmptySecret
	}
	if header == "" {
		return ErrMissingSignature
	}
	if !hmac.Equal([]byte(Sign(body, secret)), []byte(header)) {
		return ErrSignatureMismatch
	}
	return nil
}
