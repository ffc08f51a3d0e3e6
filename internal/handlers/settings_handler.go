package handlers

import (
	"errors"
	"net/http"

	"donation-service/internal/middleware"
	"donation-service/internal/services"
	"donation-service/pkg/common"

	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	Settings     *services.SettingsService
	Notification *services.NotificationService
}

func NewSettingsHandler(settings *services.SettingsService, notification *services.NotificationService) *SettingsHandler {
	return &SettingsHandler{Settings: settings, Notification: notification}
}

// Get handles GET /api/settings/:type.
func (h *SettingsHandler) Get(c *gin.Context) {
	row, err := h.Settings.GetSettings(c.Param("type"))
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "errors": verr.Errors})
			return
		}
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Failed to fetch settings", nil, http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, common.NewSuccessResponse(row, "Settings retrieved successfully"))
}

// Update handles POST /api/settings/:type.
func (h *SettingsHandler) Update(c *gin.Context) {
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}

	// Immutable columns are never mass-assigned.
	delete(updates, "id")
	delete(updates, "type")
	delete(updates, "created_at")
	delete(updates, "updated_at")
	delete(updates, "updated_by")

	userId, role := middleware.ActorFrom(c)
	var actorId uint
	if userId != nil {
		actorId = *userId
	}

	row, err := h.Settings.UpdateSettings(c.Param("type"), updates, actorId, role)
	if err != nil {
		respondServiceError(c, err, "Failed to update settings")
		return
	}

	c.JSON(http.StatusOK, common.NewSuccessResponse(row, "Settings updated successfully"))
}

type testSmsRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// TestSms handles POST /api/settings/sms/test.
func (h *SettingsHandler) TestSms(c *gin.Context) {
	var req testSmsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("Phone number is required", nil, http.StatusBadRequest))
		return
	}

	result, err := h.Notification.SendTestSms(req.Phone)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Failed to send test SMS", err.Error(), http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, common.NewSuccessResponse(result, "Test SMS sent"))
}

type testEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// TestEmail handles POST /api/settings/email/test.
func (h *SettingsHandler) TestEmail(c *gin.Context) {
	var req testEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("A valid email address is required", nil, http.StatusBadRequest))
		return
	}

	if err := h.Notification.SendTestEmail(req.Email); err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Failed to send test email", err.Error(), http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, common.NewSuccessResponse(nil, "Test email sent"))
}
