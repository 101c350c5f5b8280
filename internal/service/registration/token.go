package registration

import (
	"crypto/rand"
	"encoding/hex"
)

// tokenBytes is the entropy of a ticket token: 128 bits, far beyond
// enumerable. The token ends up inside a QR code and in confirmation links,
// so it must be unguessable and URL-safe.
const tokenBytes = 16

// NewTicketToken returns a fresh random ticket token (32 hex chars).
func NewTicketToken() string {
	b := make([]byte, tokenBytes)
	rand.Read(b)
	return hex.EncodeToString(b)
}
