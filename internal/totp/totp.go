// Package totp implements RFC 6238 time-based one-time passcode
// generation with the defaults used by common authenticator apps:
// HMAC-SHA1, 6 digits, 30-second time step.
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// Digits is the length of a generated code.
	Digits = 6
	// Period is the code window length in seconds.
	Period = 30

	// secretBytes is the entropy of a freshly generated secret.
	secretBytes = 20
)

// decodeSecret decodes a base32 secret, tolerating lowercase input,
// embedded whitespace, and missing padding.
func decodeSecret(secret string) ([]byte, error) {
	s := strings.ToUpper(strings.Join(strings.Fields(secret), ""))
	s = strings.TrimRight(s, "=")
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}
	return key, nil
}

// Generate returns the current code for the given base32 secret.
func Generate(secret string) (string, error) {
	return GenerateAt(secret, time.Now())
}

// GenerateAt returns the code for the given secret at time t. It is
// the deterministic entry point used by tests.
func GenerateAt(secret string, t time.Time) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}

	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], uint64(t.Unix()/Period))

	mac := hmac.New(sha1.New, key)
	mac.Write(counter[:])
	sum := mac.Sum(nil)

	// Dynamic truncation per RFC 4226 §5.3.
	off := sum[len(sum)-1] & 0x0f
	code := binary.BigEndian.Uint32(sum[off:off+4]) & 0x7fffffff

	return fmt.Sprintf("%0*d", Digits, code%1_000_000), nil
}

// Remaining returns the seconds left until the current code window
// closes.
func Remaining() int {
	return RemainingAt(time.Now())
}

// RemainingAt returns the seconds left in the window containing t.
func RemainingAt(t time.Time) int {
	return Period - int(t.Unix()%Period)
}

// GenerateSecretKey returns a fresh random base32 secret suitable for
// provisioning a new identity.
func GenerateSecretKey() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

// URIParams holds the fields of an otpauth provisioning URI.
type URIParams struct {
	// Secret is the base32 TOTP secret.
	Secret string
	// AccountName identifies the account, typically an email or login.
	AccountName string
	// Issuer identifies the issuing service.
	Issuer string
}

// URI builds an otpauth://totp provisioning URI for p, the format
// consumed by authenticator apps and QR encoders.
func URI(p URIParams) string {
	label := p.AccountName
	if p.Issuer != "" {
		label = p.Issuer + ":" + p.AccountName
	}
	q := url.Values{}
	q.Set("secret", p.Secret)
	if p.Issuer != "" {
		q.Set("issuer", p.Issuer)
	}
	q.Set("algorithm", "SHA1")
	q.Set("digits", fmt.Sprintf("%d", Digits))
	q.Set("period", fmt.Sprintf("%d", Period))
	return "otpauth://totp/" + url.PathEscape(label) + "?" + q.Encode()
}

// Service adapts the package functions to the generation-service
// interface consumed by the scheduler.
type Service struct{}

// Generate returns the current code for secret.
func (Service) Generate(secret string) (string, error) {
	return Generate(secret)
}

// Remaining returns the seconds left in the current code window.
func (Service) Remaining() int {
	return Remaining()
}
