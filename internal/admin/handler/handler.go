package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadmarket_backend/internal/admin/service"
	"leadmarket_backend/internal/admin/transport"
	contractortransport "leadmarket_backend/internal/contractors/transport"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/logger"
)

type Handler struct {
	svc *service.Service
	log *logger.Logger
}

func New(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Login(c *gin.Context) {
	var req transport.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	accessToken, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.LoginResponse{AccessToken: accessToken})
}

func (h *Handler) ListContractors(c *gin.Context) {
	contractors, err := h.svc.ListContractors(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	out := transport.ContractorListResponse{
		Contractors: make([]contractortransport.ContractorResponse, 0, len(contractors)),
		Count:       len(contractors),
	}
	for _, contractor := range contractors {
		out.Contractors = append(out.Contractors, contractortransport.ToContractorResponse(contractor))
	}
	httpkit.OK(c, out)
}

func (h *Handler) SetPrice(c *gin.Context) {
	contractorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid contractor id", nil)
		return
	}
	var req transport.SetPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.svc.SetPrice(c.Request.Context(), contractorID, req.PricePerLeadCents); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"updated": true})
}

func (h *Handler) DeleteContractor(c *gin.Context) {
	contractorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid contractor id", nil)
		return
	}
	if err := h.svc.DeleteContractor(c.Request.Context(), contractorID); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Revenue(c *gin.Context) {
	report, err := h.svc.Revenue(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.ToRevenueResponse(report))
}

func (h *Handler) TriggerBillingRun(c *gin.Context) {
	summary, err := h.svc.TriggerBillingRun(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusAccepted, transport.ToBillingRunResponse(summary))
}
