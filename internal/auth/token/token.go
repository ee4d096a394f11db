// Package token generates and hashes opaque session tokens and signs
// short-lived access JWTs.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// GenerateRandom returns a URL-safe random token with 256 bits of entropy.
func GenerateRandom() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashSHA256 returns the hex SHA-256 digest of a token. Sessions store only
// the digest so a database leak does not expose usable tokens, and the digest
// supports an indexed equality lookup.
func HashSHA256(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// AccessClaims are the claims carried by access JWTs.
type AccessClaims struct {
	Roles []string `json:"roles"`
	Type  string   `json:"type"`
	jwt.RegisteredClaims
}

// SignAccess issues an HS256 access token for the given subject and roles.
func SignAccess(secret string, subject uuid.UUID, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		Roles: roles,
		Type:  "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
