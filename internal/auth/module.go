// Package auth handles contractor login, session refresh and logout with
// short-lived access JWTs backed by rotating opaque session tokens.
package auth

import (
	"leadmarket_backend/internal/auth/handler"
	apphttp "leadmarket_backend/internal/http"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(h *handler.Handler) *Module {
	return &Module{handler: h}
}

func (m *Module) Name() string { return "auth" }

func (m *Module) RegisterRoutes(rc *apphttp.RouterContext) {
	public := rc.V1.Group("/auth")
	public.Use(rc.AuthRateLimiter.RateLimit())
	{
		public.POST("/login", m.handler.Login)
		public.POST("/refresh", m.handler.Refresh)
		public.POST("/logout", m.handler.Logout)
	}

	rc.Protected.GET("/auth/whoami", m.handler.Whoami)
}
