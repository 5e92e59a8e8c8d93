package wire

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Digest domains. The version suffix allows changing the encoding later.
const (
	DomainRecords   = "selectapi/records/v1"
	DomainSelection = "selectapi/selection/v1"
)

// Digest returns SHA256(domain || 0x00 || Marshal(v)) in hex.
// Two projections are identical exactly when their digests match.
func Digest(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
