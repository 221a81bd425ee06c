package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// apiKeyPrefix marks generated keys so they are recognizable in logs and
// support tickets without revealing the secret part.
const apiKeyPrefix = "rvk_"

// apiKeyBytes is the amount of random material per key; 24 bytes encode
// to 32 base64url characters.
const apiKeyBytes = 24

// NewAPIKey returns a cryptographically random, URL-safe API key of the
// form "rvk_<32 chars>".  Uniqueness is enforced by the unique index on
// users.api_key, not by the generator.
func NewAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return apiKeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}
