package handler

import (
	"errors"
	"net/http"

	"fleetwatch/app/middleware"
	"fleetwatch/internal/hub"
	"fleetwatch/internal/service"
	"fleetwatch/pkg/logger"

	"github.com/gin-gonic/gin"
)

// WSHandler WebSocket entry points for agents and dashboards
type WSHandler struct {
	ingestService *service.IngestService
	hub           *hub.Hub
	jwtSecret     string
}

// NewWSHandler creates ws handler
func NewWSHandler(ingestService *service.IngestService, h *hub.Hub, jwtSecret string) *WSHandler {
	return &WSHandler{
		ingestService: ingestService,
		hub:           h,
		jwtSecret:     jwtSecret,
	}
}

// Agent authenticates the handshake, then upgrades. A rejected handshake never upgrades.
// @Summary Agent WebSocket
// @Tags websocket
// @Param X-API-Key header string true "Device credential"
// @Param X-Machine-ID header string true "Machine ID"
// @Router /agent/ws [get]
func (h *WSHandler) Agent(c *gin.Context) {
	ctx := c.Request.Context()
	creds := hub.CredentialsFromRequest(c.Request)

	device, firstTime, err := h.ingestService.Authenticate(ctx, creds.APIKey, creds.MachineID, creds.DeviceName)
	if err != nil {
		logger.WarnCtx(ctx, "agent handshake rejected from %s (machine %q): %v", c.ClientIP(), creds.MachineID, err)
		switch {
		case errors.Is(err, service.ErrMissingCredential), errors.Is(err, service.ErrDeviceDeactivated):
			c.JSON(http.StatusUnauthorized, Response{Success: false, Message: err.Error()})
		case errors.Is(err, service.ErrMissingMachineID):
			c.JSON(http.StatusBadRequest, Response{Success: false, Message: err.Error()})
		default:
			respondError(c, err)
		}
		return
	}
	if firstTime {
		logger.InfoCtx(ctx, "first connection of device %s (%s)", device.ID, device.DeviceName)
	}

	if err := h.hub.ServeAgent(c.Writer, c.Request, device); err != nil {
		logger.ErrorCtx(ctx, "failed to upgrade agent connection: %v", err)
	}
}

// Dashboard requires an identity token in ?token= or the Authorization header
func (h *WSHandler) Dashboard(c *gin.Context) {
	claims, err := middleware.ParseToken(h.jwtSecret, middleware.TokenFromRequest(c))
	if err != nil {
		logger.WarnCtx(c.Request.Context(), "dashboard connection rejected: %v", err)
		c.JSON(http.StatusUnauthorized, Response{Success: false, Message: "Unauthorized"})
		return
	}
	if err := h.hub.ServeDashboard(c.Writer, c.Request, claims.ID); err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to upgrade dashboard connection: %v", err)
	}
}
