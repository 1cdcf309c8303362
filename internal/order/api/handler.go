package api

import (
	"encoding/json"
	"net/http"

	"blendshop/internal/auth"
	"blendshop/internal/errs"
	"blendshop/internal/models"
	"blendshop/internal/order"
	"blendshop/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	OrderService *order.OrderService
}

// CreateOrder places a new order: stock is reserved and totals are computed
// in one transaction, and the order comes back in status pending.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	placed, err := h.OrderService.PlaceOrder(r.Context(), req)
	if err != nil {
		writeFailure(w, err, "Could not place order")
		return
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("Order created", placed))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	ord, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		writeFailure(w, err, "Could not get order")
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Order", ord))
}

// ListOrders returns the authenticated user's orders. The user id is set by
// the auth middleware; guests have no listing.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Authentication required", "no user identity in request")
		return
	}

	orders, err := h.OrderService.ListOrdersByUser(r.Context(), userID)
	if err != nil {
		writeFailure(w, err, "Could not list orders")
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Orders", orders))
}

type shipRequest struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
}

// ShipOrder stamps tracking details and moves the order to shipped. Shipping
// an already-shipped order acknowledges without re-sending notifications.
func (h *Handler) ShipOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req shipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if err := h.OrderService.Ship(r.Context(), orderID, req.TrackingNumber, req.Carrier); err != nil {
		writeFailure(w, err, "Could not ship order")
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Order shipped", map[string]string{"order_id": orderID}))
}

// CompleteOrder marks a shipped order as delivered.
func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	if err := h.OrderService.Complete(r.Context(), orderID); err != nil {
		writeFailure(w, err, "Could not complete order")
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Order completed", map[string]string{"order_id": orderID}))
}

type cancelRequest struct {
	Reason      string `json:"reason"`
	RefundCents int64  `json:"refund_cents"`
}

// CancelOrder voids a pre-shipment order, restocking its lines and issuing
// an optional refund through the gateway.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if err := h.OrderService.Cancel(r.Context(), orderID, req.Reason, req.RefundCents); err != nil {
		writeFailure(w, err, "Could not cancel order")
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Order cancelled", map[string]string{"order_id": orderID}))
}

type refundRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
	Notes       string `json:"notes"`
}

// RefundOrder issues a staff refund. The gateway refund goes out first;
// local effects apply only after the gateway confirmed.
func (h *Handler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if err := h.OrderService.Refund(r.Context(), orderID, req.AmountCents, req.Reason, req.Notes); err != nil {
		writeFailure(w, err, "Could not refund order")
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Refund processed", map[string]string{"order_id": orderID}))
}

func writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	writeJSON(w, status, utils.ErrorResponse(message, detail))
}

// writeFailure answers with the taxonomy-mapped status and an envelope
// carrying the error's kind and public message.
func writeFailure(w http.ResponseWriter, err error, message string) {
	writeJSON(w, errs.HTTPStatusOf(err), utils.FailureResponse(message, err))
}
