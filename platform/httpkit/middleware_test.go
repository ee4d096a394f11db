package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type testJWTConfig struct{ secret string }

func (c testJWTConfig) GetJWTAccessSecret() string { return c.secret }

func signTestToken(t *testing.T, secret, tokenType string, subject string, roles []string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   subject,
		"type":  tokenType,
		"roles": roles,
		"exp":   time.Now().Add(time.Minute).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func protectedRouter(cfg testJWTConfig, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	group := engine.Group("/p", AuthRequired(cfg), RequireRole(role))
	group.GET("/me", func(c *gin.Context) {
		identity := MustGetIdentity(c)
		c.JSON(http.StatusOK, gin.H{"id": identity.ContractorID().String()})
	})
	return engine
}

func TestAuthRequiredAcceptsValidToken(t *testing.T) {
	cfg := testJWTConfig{secret: "s3cret"}
	subject := uuid.New()
	engine := protectedRouter(cfg, RoleContractor)

	req := httptest.NewRequest(http.MethodGet, "/p/me", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "s3cret", "access", subject.String(), []string{RoleContractor}))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestAuthRequiredRejectsBadTokens(t *testing.T) {
	cfg := testJWTConfig{secret: "s3cret"}
	engine := protectedRouter(cfg, RoleContractor)
	subject := uuid.New().String()

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Token abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signTestToken(t, "other", "access", subject, []string{RoleContractor}), http.StatusUnauthorized},
		{"wrong type", "Bearer " + signTestToken(t, "s3cret", "refresh", subject, []string{RoleContractor}), http.StatusUnauthorized},
		{"bad subject", "Bearer " + signTestToken(t, "s3cret", "access", "not-a-uuid", []string{RoleContractor}), http.StatusUnauthorized},
		{"wrong role", "Bearer " + signTestToken(t, "s3cret", "access", subject, []string{RoleAdmin}), http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/p/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, rec.Code, tc.want)
		}
	}
}

func TestRequireRoleAdmin(t *testing.T) {
	cfg := testJWTConfig{secret: "s3cret"}
	engine := protectedRouter(cfg, RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/p/me", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "s3cret", "access", uuid.New().String(), []string{RoleAdmin}))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("admin token rejected: %d", rec.Code)
	}
}
