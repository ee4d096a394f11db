package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/leads/service"
	"leadmarket_backend/internal/leads/transport"
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

// Submit is the public intake endpoint prospects post to.
func (h *Handler) Submit(c *gin.Context) {
	var req transport.SubmitLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	lead, err := h.svc.Submit(c.Request.Context(), service.SubmitParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		City:      req.City,
		Zip:       req.Zip,
	})
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToLeadResponse(lead))
}

// List returns the authenticated contractor's leads, optionally filtered by
// ?status=OPEN,IN_PROGRESS.
func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)

	var statuses []domain.Status
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := domain.Status(strings.ToUpper(strings.TrimSpace(part)))
			if !status.Valid() {
				httpkit.Error(c, http.StatusBadRequest, "unknown status "+part, nil)
				return
			}
			statuses = append(statuses, status)
		}
	}

	leads, err := h.svc.ListForContractor(c.Request.Context(), identity.ContractorID(), statuses)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"leads": transport.ToLeadResponses(leads), "count": len(leads)})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)

	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	status := domain.Status(strings.ToUpper(req.Status))
	if err := h.svc.UpdateStatuses(c.Request.Context(), identity.ContractorID(), req.LeadIDs, status); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"updated": len(req.LeadIDs)})
}
