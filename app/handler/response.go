package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"fleetwatch/app/middleware"
	"fleetwatch/internal/service"
	"fleetwatch/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	defaultPage  = 1
	defaultLimit = 50
	maxLimit     = 500
)

// Response API envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Total   *int64      `json:"total,omitempty"`
	Page    *int        `json:"page,omitempty"`
	Pages   *int        `json:"pages,omitempty"`
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func respondCreated(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data, Message: message})
}

func respondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message})
}

func respondList(c *gin.Context, data interface{}, count int) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Count: &count})
}

func respondPage(c *gin.Context, data interface{}, count int, total int64, page, limit int) {
	pages := int(math.Ceil(float64(total) / float64(limit)))
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Count: &count, Total: &total, Page: &page, Pages: &pages})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Message: message})
}

// respondError maps service errors to status codes. Unexpected errors are logged
// and, outside debug mode, replaced with a generic message.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.ErrorCtx(c.Request.Context(), "%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		if gin.Mode() != gin.DebugMode {
			message = "Internal server error"
		}
	}
	c.JSON(status, Response{Success: false, Message: message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrDeviceNotFound),
		errors.Is(err, service.ErrAlertNotFound),
		errors.Is(err, service.ErrWorkflowNotFound),
		errors.Is(err, service.ErrQuickActionNotFound),
		errors.Is(err, service.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidArgument),
		errors.Is(err, service.ErrEmptyWorkflow),
		errors.Is(err, service.ErrNoValidTargets),
		errors.Is(err, service.ErrMissingMachineID),
		errors.Is(err, service.ErrDeviceOffline),
		errors.Is(err, service.ErrDeviceDeactivated):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrMissingCredential):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrDuplicateMachineID),
		errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// pagination reads ?page=&limit= with defaults and bounds
func pagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = defaultPage
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func actorID(c *gin.Context) string {
	if user := middleware.CurrentUser(c); user != nil {
		return user.ID
	}
	return ""
}
