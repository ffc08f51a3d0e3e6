package handlers

import (
	"errors"
	"io"
	"net/http"
	"os"

	"donation-service/internal/services"

	"github.com/gin-gonic/gin"
)

type MpesaHandler struct {
	Mpesa     *services.MpesaService
	Donations *services.DonationService
}

func NewMpesaHandler(mpesa *services.MpesaService, donations *services.DonationService) *MpesaHandler {
	return &MpesaHandler{Mpesa: mpesa, Donations: donations}
}

type stkPushRequest struct {
	Phone       string  `json:"phone" binding:"required"`
	Amount      float64 `json:"amount" binding:"required"`
	Reference   string  `json:"reference"`
	Description string  `json:"description"`
}

// StkPush handles POST /api/mpesa/stk-push.
func (h *MpesaHandler) StkPush(c *gin.Context) {
	var req stkPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Phone number and amount are required"})
		return
	}

	result, err := h.Mpesa.InitiateSTKPush(c.Request.Context(), services.STKPushInput{
		Phone:       req.Phone,
		Amount:      req.Amount,
		Reference:   req.Reference,
		Description: req.Description,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "Failed to initiate STK push",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":           "STK push initiated successfully",
		"checkoutRequestID": result.CheckoutRequestID,
		"responseCode":      result.ResponseCode,
		"customerMessage":   result.CustomerMessage,
	})
}

// StkStatus handles GET /api/mpesa/stk-status/:checkoutRequestId.
func (h *MpesaHandler) StkStatus(c *gin.Context) {
	checkoutRequestId := c.Param("checkoutRequestId")
	if checkoutRequestId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Checkout Request ID is required"})
		return
	}

	result, err := h.Donations.QueryStatus(c.Request.Context(), checkoutRequestId)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "Failed to check STK status",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "STK status retrieved successfully",
		"result":  result,
	})
}

// Callback handles POST /api/mpesa/callback. Always acknowledged.
func (h *MpesaHandler) Callback(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err == nil {
		_ = h.Donations.ReconcileCallback(payload)
	}
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Success"})
}

// Validation handles POST /api/mpesa/validation (C2B).
func (h *MpesaHandler) Validation(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}

// Confirmation handles POST /api/mpesa/confirmation (C2B).
func (h *MpesaHandler) Confirmation(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Success"})
}

// TestConnection handles GET /api/mpesa/test-connection.
func (h *MpesaHandler) TestConnection(c *gin.Context) {
	_, err := h.Mpesa.TestConnection(c.Request.Context())
	if err != nil {
		var aerr *services.GatewayAuthError
		if errors.As(err, &aerr) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "Failed to connect to M-Pesa API",
				"error":   aerr.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "M-Pesa connection successful",
		"token":   "Valid access token received",
	})
}

// TransactionStatus handles GET /api/mpesa/transaction-status/:receiptNumber.
func (h *MpesaHandler) TransactionStatus(c *gin.Context) {
	receiptNumber := c.Param("receiptNumber")
	if receiptNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Receipt number is required"})
		return
	}

	result, err := h.Mpesa.QueryTransactionStatus(c.Request.Context(), receiptNumber, os.Getenv("API_BASE_URL"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "Failed to query transaction status",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Transaction status query accepted",
		"result":  result,
	})
}

// TransactionResult handles POST /api/donations/transaction-result, the
// async answer to a transaction status query. Logged for the admin trail.
func (h *MpesaHandler) TransactionResult(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err == nil {
		h.Donations.LogProviderResult("Transaction status result", string(payload))
	}
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Success"})
}

// TransactionTimeout handles POST /api/donations/transaction-timeout.
func (h *MpesaHandler) TransactionTimeout(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err == nil {
		h.Donations.LogProviderResult("Transaction status timeout", string(payload))
	}
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Success"})
}

// RegisterUrls handles POST /api/mpesa/register-urls.
func (h *MpesaHandler) RegisterUrls(c *gin.Context) {
	result, err := h.Mpesa.RegisterC2BURL(c.Request.Context(), os.Getenv("API_BASE_URL"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": "Failed to register M-Pesa callback URLs",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "M-Pesa callback URLs registered successfully",
		"result":  result,
	})
}
