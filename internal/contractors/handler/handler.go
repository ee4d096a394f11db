package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"leadmarket_backend/internal/auth/password"
	"leadmarket_backend/internal/contractors/repository"
	"leadmarket_backend/internal/contractors/service"
	"leadmarket_backend/internal/contractors/transport"
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

func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	var req transport.CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	session, err := h.svc.CreateCheckoutSession(c.Request.Context(), req.Email, req.Name)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.CheckoutSessionResponse{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	})
}

func (h *Handler) UpdateSession(c *gin.Context) {
	var req transport.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	sessionID := c.Param("sessionId")
	if sessionID == "" {
		httpkit.Error(c, http.StatusBadRequest, "missing session id", nil)
		return
	}
	if err := h.svc.UpdateSessionEmail(c.Request.Context(), sessionID, req.Email); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"updated": true})
}

func (h *Handler) CreateUpdateSession(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	session, err := h.svc.CreateUpdateSession(c.Request.Context(), identity.ContractorID())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.CheckoutSessionResponse{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	})
}

func (h *Handler) Register(c *gin.Context) {
	var req transport.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "could not process registration", nil)
		return
	}

	contractor, err := h.svc.Register(c.Request.Context(), service.RegisterParams{
		Name:         req.Name,
		Company:      req.Company,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		SessionID:    req.SessionID,
		ZipCodes:     req.ZipCodes,
	})
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToContractorResponse(contractor))
}

func (h *Handler) GetMe(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	contractor, err := h.svc.Get(c.Request.Context(), identity.ContractorID())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.ToContractorResponse(contractor))
}

func (h *Handler) UpdateMe(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)

	var req transport.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	contractor, err := h.svc.Update(c.Request.Context(), identity.ContractorID(), repository.UpdateParams{
		Name:               req.Name,
		Company:            req.Company,
		Phone:              req.Phone,
		ZipCodes:           req.ZipCodes,
		CRMAPIKey:          req.CRMAPIKey,
		PipelineID:         req.PipelineID,
		PipelineLocationID: req.PipelineLocationID,
	})
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.ToContractorResponse(contractor))
}

func (h *Handler) DeleteMe(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if err := h.svc.Delete(c.Request.Context(), identity.ContractorID()); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
