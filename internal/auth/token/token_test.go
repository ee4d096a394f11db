package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestGenerateRandomIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		tok, err := GenerateRandom()
		if err != nil {
			t.Fatalf("GenerateRandom: %v", err)
		}
		if tok == "" {
			t.Fatal("empty token")
		}
		if _, dup := seen[tok]; dup {
			t.Fatal("duplicate token generated")
		}
		seen[tok] = struct{}{}
	}
}

func TestHashSHA256IsDeterministic(t *testing.T) {
	if HashSHA256("abc") != HashSHA256("abc") {
		t.Error("same input produced different digests")
	}
	if HashSHA256("abc") == HashSHA256("abd") {
		t.Error("different inputs collided")
	}
	if got := len(HashSHA256("abc")); got != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", got)
	}
}

func TestSignAccessRoundTrip(t *testing.T) {
	subject := uuid.New()
	signed, err := SignAccess("test-secret", subject, []string{"contractor"}, time.Minute)
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}

	var claims AccessClaims
	parsed, err := jwt.ParseWithClaims(signed, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("token not valid")
	}
	if claims.Subject != subject.String() {
		t.Errorf("subject = %q, want %q", claims.Subject, subject)
	}
	if claims.Type != "access" {
		t.Errorf("type = %q, want access", claims.Type)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "contractor" {
		t.Errorf("roles = %v, want [contractor]", claims.Roles)
	}
}

func TestSignAccessRejectsWrongSecret(t *testing.T) {
	signed, err := SignAccess("right-secret", uuid.New(), nil, time.Minute)
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}
	_, err = jwt.ParseWithClaims(signed, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte("wrong-secret"), nil
	})
	if err == nil {
		t.Fatal("token verified with the wrong secret")
	}
}
