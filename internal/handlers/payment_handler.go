package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visionmatch/internal/responses"
	"visionmatch/internal/services"
)

type PaymentHandler struct {
	paymentService PaymentService
}

func NewPaymentHandler(paymentService PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// CreateOrder handles POST /api/v1/escrow/create-order. Only the request id
// is read from the body; the amount is computed server-side.
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	var body struct {
		RequestID string `json:"requestId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "requestId is required")
		return
	}

	order, err := h.paymentService.CreateOrder(c.Request.Context(), caller, body.RequestID)
	if err != nil {
		fail(c, err, "Failed to create escrow order")
		return
	}
	responses.Success(c, http.StatusCreated, order, "Escrow order created")
}

// VerifyPayment handles POST /api/v1/escrow/verify-payment
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	var in services.VerifyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid payment details")
		return
	}

	escrowed, err := h.paymentService.VerifyPayment(c.Request.Context(), caller, in)
	if err != nil {
		fail(c, err, "Payment verification failed")
		return
	}
	responses.Success(c, http.StatusOK, escrowed, "Payment held in escrow")
}

// StatusByRequest handles GET /api/v1/escrow/:requestId/status
func (h *PaymentHandler) StatusByRequest(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	payment, err := h.paymentService.StatusByRequest(c.Request.Context(), caller, c.Param("requestId"))
	if err != nil {
		fail(c, err, "Failed to load payment status")
		return
	}
	if payment == nil {
		responses.Fail(c, http.StatusNotFound, nil, "No payment for this request yet")
		return
	}
	responses.Success(c, http.StatusOK, payment, "Payment status retrieved")
}

// Status handles GET /api/v1/escrow/payment/:id; the id may be a payment id
// or a gateway order id.
func (h *PaymentHandler) Status(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	payment, err := h.paymentService.Status(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		fail(c, err, "Payment not found")
		return
	}
	responses.Success(c, http.StatusOK, payment, "Payment status retrieved")
}

// Release handles POST /api/v1/escrow/confirm
func (h *PaymentHandler) Release(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	var body struct {
		PaymentID string `json:"paymentId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "paymentId is required")
		return
	}

	released, err := h.paymentService.Release(c.Request.Context(), caller, body.PaymentID)
	if err != nil {
		fail(c, err, "Failed to release payment")
		return
	}
	responses.Success(c, http.StatusOK, released, "Payment released to creator")
}

// Balance handles GET /api/v1/creators/:creatorId/balance
func (h *PaymentHandler) Balance(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	creatorID := c.Param("creatorId")
	amount, err := h.paymentService.Balance(c.Request.Context(), caller, creatorID)
	if err != nil {
		fail(c, err, "Failed to load balance")
		return
	}
	responses.Success(c, http.StatusOK, gin.H{"creatorId": creatorID, "balance": amount}, "Balance retrieved")
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *PaymentHandler) GetBooking(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	booking, err := h.paymentService.Booking(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		fail(c, err, "Booking not found")
		return
	}
	responses.Success(c, http.StatusOK, booking, "Booking retrieved")
}

// ListClientBookings handles GET /api/v1/bookings/client/:clientId
func (h *PaymentHandler) ListClientBookings(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	bookings, err := h.paymentService.ClientBookings(c.Request.Context(), caller, c.Param("clientId"))
	if err != nil {
		fail(c, err, "Failed to retrieve bookings")
		return
	}
	responses.Success(c, http.StatusOK, bookings, "Bookings retrieved")
}

// ConfirmEvent handles POST /api/v1/bookings/:id/confirm-event
func (h *PaymentHandler) ConfirmEvent(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	var body struct {
		Confirmed *bool  `json:"confirmed" binding:"required"`
		Reason    string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "confirmed is required")
		return
	}

	booking, err := h.paymentService.ConfirmEvent(c.Request.Context(), caller, c.Param("id"), *body.Confirmed, body.Reason)
	if err != nil {
		fail(c, err, "Failed to update booking")
		return
	}
	message := "Event confirmed, payment released"
	if !*body.Confirmed {
		message = "Dispute opened, payment stays in escrow"
	}
	responses.Success(c, http.StatusOK, booking, message)
}
