package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"leadmarket_backend/internal/auth/service"
	"leadmarket_backend/internal/auth/transport"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/logger"
)

type Handler struct {
	svc    *service.Service
	cookie config.CookieConfig
	log    *logger.Logger
}

func New(svc *service.Service, cookie config.CookieConfig, log *logger.Logger) *Handler {
	return &Handler{svc: svc, cookie: cookie, log: log}
}

func (h *Handler) Login(c *gin.Context) {
	var req transport.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	pair, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	h.setSessionCookie(c, pair.SessionToken)
	httpkit.OK(c, transport.TokenResponse{AccessToken: pair.AccessToken, ContractorID: pair.ContractorID})
}

func (h *Handler) Refresh(c *gin.Context) {
	sessionToken, err := c.Cookie(h.cookie.GetSessionCookieName())
	if err != nil || sessionToken == "" {
		httpkit.Error(c, http.StatusUnauthorized, "no session", nil)
		return
	}
	pair, err := h.svc.Refresh(c.Request.Context(), sessionToken)
	if err != nil {
		h.clearSessionCookie(c)
		httpkit.HandleError(c, err)
		return
	}
	h.setSessionCookie(c, pair.SessionToken)
	httpkit.OK(c, transport.TokenResponse{AccessToken: pair.AccessToken, ContractorID: pair.ContractorID})
}

func (h *Handler) Logout(c *gin.Context) {
	if sessionToken, err := c.Cookie(h.cookie.GetSessionCookieName()); err == nil && sessionToken != "" {
		if err := h.svc.Logout(c.Request.Context(), sessionToken); err != nil {
			httpkit.HandleError(c, err)
			return
		}
	}
	h.clearSessionCookie(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) Whoami(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	httpkit.OK(c, transport.WhoamiResponse{
		ContractorID: identity.ContractorID(),
		Roles:        identity.Roles(),
	})
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(h.cookie.GetSessionCookieSameSite())
	c.SetCookie(
		h.cookie.GetSessionCookieName(),
		token,
		int(h.cookie.GetSessionTokenTTL().Seconds()),
		h.cookie.GetSessionCookiePath(),
		h.cookie.GetSessionCookieDomain(),
		h.cookie.GetSessionCookieSecure(),
		true,
	)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(h.cookie.GetSessionCookieSameSite())
	c.SetCookie(
		h.cookie.GetSessionCookieName(),
		"",
		-1,
		h.cookie.GetSessionCookiePath(),
		h.cookie.GetSessionCookieDomain(),
		h.cookie.GetSessionCookieSecure(),
		true,
	)
}
