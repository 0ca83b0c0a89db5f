package handler

import (
	"net/http"
	"time"

	"fleetwatch/internal/model"
	"fleetwatch/internal/service"

	"github.com/gin-gonic/gin"
)

// DeviceHandler device registry, history and single-command routes
type DeviceHandler struct {
	deviceService   *service.DeviceService
	metricsService  *service.MetricsService
	alertService    *service.AlertService
	dispatchService *service.DispatchService
}

// NewDeviceHandler creates device handler
func NewDeviceHandler(deviceService *service.DeviceService, metricsService *service.MetricsService, alertService *service.AlertService, dispatchService *service.DispatchService) *DeviceHandler {
	return &DeviceHandler{
		deviceService:   deviceService,
		metricsService:  metricsService,
		alertService:    alertService,
		dispatchService: dispatchService,
	}
}

// CommandRequest single command body
type CommandRequest struct {
	Command   string `json:"command" binding:"required"`
	Directory string `json:"directory"`
}

// List lists active devices
// @Summary List devices
// @Tags devices
// @Produce json
// @Router /api/devices [get]
func (h *DeviceHandler) List(c *gin.Context) {
	devices, err := h.deviceService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, devices, len(devices))
}

// Summary fleet counters and averages
// @Summary Device summary
// @Tags devices
// @Router /api/devices/stats/summary [get]
func (h *DeviceHandler) Summary(c *gin.Context) {
	summary, err := h.deviceService.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, summary)
}

// Get gets one device
func (h *DeviceHandler) Get(c *gin.Context) {
	device, err := h.deviceService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, device)
}

// Create pre-provisions a device; the response is the only place its key is shown
// @Summary Create device
// @Tags devices
// @Accept json
// @Produce json
// @Param request body service.CreateDeviceRequest true "Device"
// @Router /api/devices [post]
func (h *DeviceHandler) Create(c *gin.Context) {
	var req service.CreateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request: "+err.Error())
		return
	}
	req.OwnerID = actorID(c)

	device, err := h.deviceService.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, device, "Device created")
}

// Update edits name, notes, tags and alert rules
func (h *DeviceHandler) Update(c *gin.Context) {
	var upd model.DeviceUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		respondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	device, err := h.deviceService.Update(c.Request.Context(), c.Param("id"), &upd)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, device)
}

// Delete deactivates a device and drops its agent
func (h *DeviceHandler) Delete(c *gin.Context) {
	if err := h.deviceService.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Device deactivated")
}

// RegenerateKey issues a new credential and drops the agent
func (h *DeviceHandler) RegenerateKey(c *gin.Context) {
	device, err := h.deviceService.RegenerateKey(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"deviceId": device.ID, "apiKey": device.APIKey})
}

// Metrics aggregated history for ?period= (1h, 6h, 24h, 7d, 30d)
// @Summary Device metrics report
// @Tags devices
// @Param period query string false "Period" default(24h)
// @Router /api/devices/{id}/metrics [get]
func (h *DeviceHandler) Metrics(c *gin.Context) {
	report, err := h.metricsService.Report(c.Request.Context(), c.Param("id"), c.Query("period"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, report)
}

// History raw points between ?from= and ?to= (RFC 3339)
func (h *DeviceHandler) History(c *gin.Context) {
	from, err := parseTime(c.Query("from"))
	if err != nil {
		respondBadRequest(c, "Invalid from: "+err.Error())
		return
	}
	to, err := parseTime(c.Query("to"))
	if err != nil {
		respondBadRequest(c, "Invalid to: "+err.Error())
		return
	}

	points, err := h.metricsService.History(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, points, len(points))
}

// Alerts alerts of one device
func (h *DeviceHandler) Alerts(c *gin.Context) {
	if _, err := h.deviceService.Get(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	filter := alertFilter(c)
	filter.DeviceID = c.Param("id")

	alerts, total, err := h.alertService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, alerts, len(alerts), total, filter.Page, filter.Limit)
}

// Command pushes one shell command to the device's agent
// @Summary Send command
// @Tags devices
// @Accept json
// @Param request body CommandRequest true "Command"
// @Router /api/devices/{id}/command [post]
func (h *DeviceHandler) Command(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Command is required")
		return
	}

	run, err := h.dispatchService.DispatchSingle(c.Request.Context(), c.Param("id"), req.Command, req.Directory, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"executionId": run.ID, "run": run}, Message: "Command sent to device"})
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
