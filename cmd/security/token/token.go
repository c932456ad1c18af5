package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultBytes is the random suffix size used when callers pass <= 0.
	DefaultBytes = 32

	sep = "_"

	// Upper bound on accepted credential length; anything larger is rejected before parsing.
	maxLen = 512
)

// NewOpaque returns a fresh credential bound to principalID.
func NewOpaque(principalID int64, nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = DefaultBytes
	}

	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropy, err)
	}

	prefix := base64.StdEncoding.EncodeToString([]byte(strconv.FormatInt(principalID, 10)))
	return prefix + sep + hex.EncodeToString(b), nil
}

// PrincipalOf extracts the principal id encoded in a credential.
// It does not prove the credential is live; callers must validate against the store.
func PrincipalOf(credential string) (int64, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" || len(credential) > maxLen {
		return 0, ErrMalformed
	}

	prefix, suffix, ok := strings.Cut(credential, sep)
	if !ok || prefix == "" || suffix == "" {
		return 0, ErrMalformed
	}

	raw, err := base64.StdEncoding.DecodeString(prefix)
	if err != nil {
		return 0, ErrMalformed
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrMalformed
	}
	return id, nil
}

// Equal compares two credentials in constant time.
func Equal(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
