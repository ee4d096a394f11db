// Package leads exposes public lead intake and contractor-facing lead views.
// Leads live in the CRM; this module never persists them locally.
package leads

import (
	apphttp "leadmarket_backend/internal/http"
	"leadmarket_backend/internal/leads/handler"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(h *handler.Handler) *Module {
	return &Module{handler: h}
}

func (m *Module) Name() string { return "leads" }

func (m *Module) RegisterRoutes(rc *apphttp.RouterContext) {
	rc.V1.POST("/leads", m.handler.Submit)

	rc.Protected.GET("/leads", m.handler.List)
	rc.Protected.PATCH("/leads/status", m.handler.UpdateStatus)
}
