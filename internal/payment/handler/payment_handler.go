package handlers

import (
	"fmt"
	"io"
	"net/http"

	"blendshop/internal/errs"
	"blendshop/internal/logger"
	"blendshop/internal/order"
	"blendshop/internal/utils"

	"github.com/gin-gonic/gin"
)

// maxWebhookBody bounds webhook payload reads. Stripe events are small; a
// larger body is not a legitimate delivery.
const maxWebhookBody = 1 << 16

type PaymentHandler struct {
	orders *order.OrderService
	logger *logger.Logger
}

func NewPaymentHandler(orders *order.OrderService, logger *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		orders: orders,
		logger: logger,
	}
}

type createIntentRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// CreateIntent hands the checkout client a client secret for the order's
// payment intent. Calling it again for the same order returns the same
// secret as long as the amount has not changed.
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	clientSecret, err := h.orders.CreatePaymentIntent(c.Request.Context(), req.OrderID)
	if err != nil {
		h.logger.Error("PAYMENT", fmt.Sprintf("Failed to create intent for order %s: %v", req.OrderID, err))
		c.JSON(errs.HTTPStatusOf(err), utils.FailureResponse("Failed to create payment intent", err))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment intent ready", gin.H{
		"order_id":      req.OrderID,
		"client_secret": clientSecret,
	}))
}

// Status returns the order's payment view. Clients poll this after checkout
// because webhook settlement can lag the redirect by seconds to minutes.
func (h *PaymentHandler) Status(c *gin.Context) {
	orderID := c.Param("orderId")

	status, err := h.orders.PaymentStatus(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(errs.HTTPStatusOf(err), utils.FailureResponse("Failed to get payment status", err))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment status", status))
}

// Webhook receives raw gateway deliveries. Signature failures are rejected
// with 400; processing failures return 500 so the gateway redelivers. A
// duplicate delivery acknowledges without reapplying effects.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Failed to read webhook body", err.Error()))
		return
	}

	event, err := h.orders.Gateway.VerifyEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.LogSecurity("WEBHOOK_REJECTED", fmt.Sprintf("signature verification failed: %v", err))
		c.JSON(http.StatusBadRequest, utils.FailureResponse("Webhook verification failed", err))
		return
	}

	if err := h.orders.HandleGatewayEvent(c.Request.Context(), event); err != nil {
		h.logger.Error("WEBHOOK", fmt.Sprintf("Failed to process event %s: %v", event.ID, err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to process webhook event", "event processing failed"))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Webhook processed", gin.H{"event_id": event.ID}))
}

// Sync pulls the intent's current state from the gateway and reconciles the
// order through the same path a webhook would take. Used when a webhook is
// suspected delayed or lost.
func (h *PaymentHandler) Sync(c *gin.Context) {
	orderID := c.Param("orderId")

	status, err := h.orders.SyncPaymentStatus(c.Request.Context(), orderID)
	if err != nil {
		h.logger.Error("PAYMENT", fmt.Sprintf("Failed to sync order %s: %v", orderID, err))
		c.JSON(errs.HTTPStatusOf(err), utils.FailureResponse("Failed to sync payment status", err))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment status synced", status))
}
