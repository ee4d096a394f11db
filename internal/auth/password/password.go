// Package password wraps bcrypt hashing for credential storage.
package password

import "golang.org/x/crypto/bcrypt"

const bcryptCost = 12

// Hash hashes a plaintext password with bcrypt.
func Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether plain matches the stored bcrypt hash.
func Verify(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
