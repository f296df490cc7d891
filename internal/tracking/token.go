package tracking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/ignite/campaign-mailer/internal/domain"
)

// ErrInvalidToken is returned for tokens that are malformed or whose
// signature does not match.
var ErrInvalidToken = errors.New("tracking: invalid unsubscribe token")

const tokenSalt = "unsubscribe"

// Signer issues and verifies unsubscribe tokens.
type Signer struct {
	key []byte
}

// NewSigner creates a Signer for the given secret.
func NewSigner(secret string) *Signer {
	return &Signer{key: []byte(secret)}
}

// Token returns the unsubscribe token for email. The address is normalized
// first so that casing differences map to the same token.
func (s *Signer) Token(email string) string {
	email = domain.NormalizeEmail(email)
	payload := base64.RawURLEncoding.EncodeToString([]byte(email))
	return payload + "." + base64.RawURLEncoding.EncodeToString(s.sign(email))
}

// Verify checks token and returns the email address it was issued for.
func (s *Signer) Verify(token string) (string, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok || payload == "" || sig == "" {
		return "", ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", ErrInvalidToken
	}
	mac, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", ErrInvalidToken
	}
	email := string(raw)
	if !hmac.Equal(mac, s.sign(email)) {
		return "", ErrInvalidToken
	}
	return email, nil
}

// UnsubscribeURL builds the public unsubscribe link for email under baseURL.
func (s *Signer) UnsubscribeURL(baseURL, email string) string {
	return strings.TrimRight(baseURL, "/") + "/unsubscribe/" + s.Token(email)
}

func (s *Signer) sign(email string) []byte {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(tokenSalt))
	h.Write([]byte{0})
	h.Write([]byte(email))
	return h.Sum(nil)
}
