// Package tracking serves the open pixel and click redirects, and moves the
// resulting events through a Redis queue so the request path never touches
// the database.
package tracking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Signer mints and verifies tracking URLs. The id payload is HMAC-signed so
// nobody can inflate a campaign's counters by guessing ids.
type Signer struct {
	secret  []byte
	baseURL string
}

// NewSigner creates a signer. baseURL is the public origin of the tracking
// server, without a trailing slash.
func NewSigner(secret, baseURL string) *Signer {
	return &Signer{secret: []byte(secret), baseURL: strings.TrimRight(baseURL, "/")}
}

// OpenURL returns the signed pixel URL for a (campaign, contact) pair.
func (s *Signer) OpenURL(campaignID, contactID string) string {
	data := encode(campaignID, contactID)
	return fmt.Sprintf("%s/t/o/%s/%s", s.baseURL, data, s.sign(data))
}

// ClickURL returns the signed redirect URL wrapping destURL.
func (s *Signer) ClickURL(campaignID, contactID, destURL string) string {
	data := encode(campaignID, contactID, destURL)
	return fmt.Sprintf("%s/t/c/%s/%s", s.baseURL, data, s.sign(data))
}

// DecodeOpen verifies and unpacks a pixel URL's path segments.
func (s *Signer) DecodeOpen(data, sig string) (campaignID, contactID string, ok bool) {
	parts, ok := s.decode(data, sig, 2)
	if !ok {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// DecodeClick verifies and unpacks a redirect URL's path segments.
func (s *Signer) DecodeClick(data, sig string) (campaignID, contactID, destURL string, ok bool) {
	parts, ok := s.decode(data, sig, 3)
	if !ok {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func (s *Signer) decode(data, sig string, want int) ([]string, bool) {
	if !s.verify(data, sig) {
		return nil, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, false
	}
	// the destination URL may itself contain the separator, so split only
	// around the fixed-position id fields
	parts := strings.SplitN(string(raw), "|", want)
	if len(parts) != want {
		return nil, false
	}
	return parts, true
}

func (s *Signer) sign(data string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) verify(data, sig string) bool {
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(data))
	return hmac.Equal(mac.Sum(nil), want)
}

func encode(parts ...string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strings.Join(parts, "|")))
}
