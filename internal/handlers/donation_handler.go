package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"donation-service/internal/middleware"
	"donation-service/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type DonationHandler struct {
	Donations *services.DonationService
}

func NewDonationHandler(donations *services.DonationService) *DonationHandler {
	return &DonationHandler{Donations: donations}
}

// Create handles POST /api/donations. Guest donations are allowed; a
// valid token links the record to the donor's account.
func (h *DonationHandler) Create(c *gin.Context) {
	var dto services.CreateDonationDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	userId, _ := middleware.ActorFrom(c)
	dto.UserId = userId

	result, err := h.Donations.CreateDonation(c.Request.Context(), dto)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "errors": verr.Errors})
			return
		}
		// Gateway failure: the record persists as pending, surface the
		// donation id so the caller can follow up.
		status := http.StatusInternalServerError
		body := gin.H{"success": false, "message": "Failed to process donation", "error": err.Error()}
		if result != nil {
			body["data"] = result
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Donation initiated successfully",
		"data":    result,
	})
}

// Callback handles POST /api/donations/mpesa-callback. The provider must
// always receive a 200 acknowledgement.
func (h *DonationHandler) Callback(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err == nil {
		_ = h.Donations.ReconcileCallback(payload)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// List handles GET /api/donations.
func (h *DonationHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	userId, role := middleware.ActorFrom(c)

	result, err := h.Donations.ListDonations(services.ListDonationsDTO{
		Search:    c.Query("search"),
		Status:    c.Query("status"),
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
		Page:      page,
		Limit:     limit,
		ActorId:   userId,
		ActorRole: role,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch donations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// Stats handles GET /api/donations/stats.
func (h *DonationHandler) Stats(c *gin.Context) {
	_, role := middleware.ActorFrom(c)
	stats, err := h.Donations.Stats(c.DefaultQuery("period", "month"), role)
	if err != nil {
		var aerr *services.AuthorizationError
		if errors.As(err, &aerr) {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": aerr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch donation statistics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}

// Get handles GET /api/donations/:id.
func (h *DonationHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid donation id"})
		return
	}

	userId, role := middleware.ActorFrom(c)
	donation, err := h.Donations.GetDonation(uint(id), userId, role)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Donation not found"})
			return
		}
		var aerr *services.AuthorizationError
		if errors.As(err, &aerr) {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": aerr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to fetch donation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": donation})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// UpdateStatus handles PATCH /api/donations/:id/status.
func (h *DonationHandler) UpdateStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid donation id"})
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	_, role := middleware.ActorFrom(c)
	donation, err := h.Donations.UpdateStatus(services.UpdateStatusDTO{
		DonationId: uint(id),
		Status:     req.Status,
		Notes:      req.Notes,
		ActorRole:  role,
	})
	if err != nil {
		respondServiceError(c, err, "Failed to update donation status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Donation status updated successfully",
		"data":    donation,
	})
}

// Delete handles DELETE /api/donations/:id.
func (h *DonationHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid donation id"})
		return
	}

	_, role := middleware.ActorFrom(c)
	if err := h.Donations.DeleteDonation(uint(id), role); err != nil {
		respondServiceError(c, err, "Failed to delete donation")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Donation deleted successfully"})
}

func respondServiceError(c *gin.Context, err error, fallback string) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "errors": verr.Errors})
		return
	}
	var aerr *services.AuthorizationError
	if errors.As(err, &aerr) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": aerr.Error()})
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Donation not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": fallback, "error": err.Error()})
}
