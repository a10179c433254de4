package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// SecretLen is the number of random bytes in a generated signing secret.
const SecretLen = 32

// GenerateSecret returns a random hex-encoded signing secret.
// It backs development runs that have no JWT secret configured; tokens
// signed with it do not survive a restart.
func GenerateSecret() (string, error) {
	b := make([]byte, SecretLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
