package handler

import (
	"fleetwatch/internal/model"
	"fleetwatch/internal/service"

	"github.com/gin-gonic/gin"
)

// AlertHandler alert listing and transitions
type AlertHandler struct {
	alertService *service.AlertService
}

// NewAlertHandler creates alert handler
func NewAlertHandler(alertService *service.AlertService) *AlertHandler {
	return &AlertHandler{alertService: alertService}
}

// ResolveRequest optional resolution notes
type ResolveRequest struct {
	Notes string `json:"notes"`
}

// BulkRequest bulk acknowledge/resolve body
type BulkRequest struct {
	AlertIDs []string `json:"alertIds" binding:"required"`
	Notes    string   `json:"notes"`
}

func alertFilter(c *gin.Context) model.AlertFilter {
	page, limit := pagination(c)
	return model.AlertFilter{
		DeviceID: c.Query("deviceId"),
		Status:   model.AlertStatus(c.Query("status")),
		Severity: model.Severity(c.Query("severity")),
		Type:     model.AlertType(c.Query("type")),
		Page:     page,
		Limit:    limit,
	}
}

// List lists alerts, newest first
// @Summary List alerts
// @Tags alerts
// @Param status query string false "active, acknowledged, resolved"
// @Param severity query string false "info, warning, critical"
// @Router /api/alerts [get]
func (h *AlertHandler) List(c *gin.Context) {
	filter := alertFilter(c)
	alerts, total, err := h.alertService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, alerts, len(alerts), total, filter.Page, filter.Limit)
}

// Summary counts active alerts by severity across the fleet
func (h *AlertHandler) Summary(c *gin.Context) {
	summary, err := h.alertService.Summary(c.Request.Context(), c.Query("deviceId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, summary)
}

func (h *AlertHandler) Get(c *gin.Context) {
	alert, err := h.alertService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, alert)
}

func (h *AlertHandler) Acknowledge(c *gin.Context) {
	alert, err := h.alertService.Acknowledge(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, alert)
}

func (h *AlertHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	// Body is optional
	_ = c.ShouldBindJSON(&req)

	alert, err := h.alertService.Resolve(c.Request.Context(), c.Param("id"), actorID(c), req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, alert)
}

func (h *AlertHandler) BulkAcknowledge(c *gin.Context) {
	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "alertIds is required")
		return
	}
	n, err := h.alertService.BulkAcknowledge(c.Request.Context(), req.AlertIDs, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"modified": n})
}

func (h *AlertHandler) BulkResolve(c *gin.Context) {
	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "alertIds is required")
		return
	}
	n, err := h.alertService.BulkResolve(c.Request.Context(), req.AlertIDs, actorID(c), req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"modified": n})
}

// Delete removes an alert (admin)
func (h *AlertHandler) Delete(c *gin.Context) {
	if err := h.alertService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Alert deleted")
}
