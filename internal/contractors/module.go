// Package contractors covers contractor onboarding, self-service profile
// management and the checkout flow that saves a card before registration.
package contractors

import (
	"leadmarket_backend/internal/contractors/handler"
	apphttp "leadmarket_backend/internal/http"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(h *handler.Handler) *Module {
	return &Module{handler: h}
}

func (m *Module) Name() string { return "contractors" }

func (m *Module) RegisterRoutes(rc *apphttp.RouterContext) {
	payments := rc.V1.Group("/payments")
	payments.Use(rc.AuthRateLimiter.RateLimit())
	{
		payments.POST("/checkout-session", m.handler.CreateCheckoutSession)
		payments.PUT("/update-session/:sessionId", m.handler.UpdateSession)
	}

	public := rc.V1.Group("/contractors")
	public.Use(rc.AuthRateLimiter.RateLimit())
	{
		public.POST("/register", m.handler.Register)
	}

	rc.Protected.POST("/payments/update-session", m.handler.CreateUpdateSession)

	me := rc.Protected.Group("/contractors")
	{
		me.GET("/me", m.handler.GetMe)
		me.PUT("/me", m.handler.UpdateMe)
		me.DELETE("/me", m.handler.DeleteMe)
	}
}
