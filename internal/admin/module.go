// Package admin exposes the operator portal: contractor management, pricing,
// the revenue report and manual billing runs.
package admin

import (
	"leadmarket_backend/internal/admin/handler"
	apphttp "leadmarket_backend/internal/http"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(h *handler.Handler) *Module {
	return &Module{handler: h}
}

func (m *Module) Name() string { return "admin" }

func (m *Module) RegisterRoutes(rc *apphttp.RouterContext) {
	login := rc.V1.Group("/admin")
	login.Use(rc.AuthRateLimiter.RateLimit())
	{
		login.POST("/login", m.handler.Login)
	}

	rc.Admin.GET("/contractors", m.handler.ListContractors)
	rc.Admin.PUT("/contractors/:id/price", m.handler.SetPrice)
	rc.Admin.DELETE("/contractors/:id", m.handler.DeleteContractor)
	rc.Admin.GET("/revenue", m.handler.Revenue)
	rc.Admin.POST("/billing/run", m.handler.TriggerBillingRun)
}
