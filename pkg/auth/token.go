package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// TokenPrefix marks campus session tokens
	TokenPrefix = "campus_"
	// tokenBytes of entropy per session
	tokenBytes = 32
	// displayChars of the encoded part kept in the stored prefix
	displayChars = 8
)

// SessionToken is a freshly issued bearer token. Only Hash and Prefix are
// persisted.
type SessionToken struct {
	Plain  string
	Hash   string
	Prefix string
}

// NewSessionToken draws a token of the form campus_<base64url(32 bytes)>
func NewSessionToken() (SessionToken, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return SessionToken{}, fmt.Errorf("failed to generate session token: %w", err)
	}

	plain := TokenPrefix + base64.RawURLEncoding.EncodeToString(buf)
	return SessionToken{
		Plain:  plain,
		Hash:   HashToken(plain),
		Prefix: plain[:len(TokenPrefix)+displayChars],
	}, nil
}

// HashToken is the lookup key of a token: hex SHA-256 of the full string
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// WellFormed reports whether token could have been issued by
// NewSessionToken. Malformed tokens are rejected without a database lookup.
func WellFormed(token string) bool {
	encoded, ok := strings.CutPrefix(token, TokenPrefix)
	if !ok || encoded == "" {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	return err == nil && len(raw) == tokenBytes
}
