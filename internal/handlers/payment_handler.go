package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"payflow_backend/internal/logger"
	"payflow_backend/internal/models"
	"payflow_backend/internal/services"
	"payflow_backend/internal/validator"
	"payflow_backend/pkg/apperrors"
)

type PaymentHandler struct {
	*BaseHandler
	paymentService *services.PaymentService
}

func NewPaymentHandler(v *validator.Validator, paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler:    NewBaseHandler(v),
		paymentService: paymentService,
	}
}

// Initiate starts a checkout payment.
// POST /api/v1/payments
func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req models.InitiatePaymentRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	db := h.GetDB(c)
	resp, err := h.paymentService.InitiatePayment(c.Request.Context(), db, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.StatusUnknown {
		// Gateway call did not confirm; the payment will be reconciled.
		status = http.StatusAccepted
	}
	c.JSON(status, resp)
}

// GetStatus returns a payment with its transaction history.
// GET /api/v1/payments/:id
func (h *PaymentHandler) GetStatus(c *gin.Context) {
	paymentID := c.Param("id")
	if paymentID == "" {
		apperrors.HandleError(c, apperrors.NewBadRequestError("Missing payment id"))
		return
	}

	db := h.GetDB(c)
	payment, err := h.paymentService.GetPaymentStatus(db, paymentID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// Verify polls the gateway for the authoritative status of a payment.
// POST /api/v1/payments/:id/verify
func (h *PaymentHandler) Verify(c *gin.Context) {
	paymentID := c.Param("id")
	if paymentID == "" {
		apperrors.HandleError(c, apperrors.NewBadRequestError("Missing payment id"))
		return
	}

	db := h.GetDB(c)
	payment, err := h.paymentService.VerifyPayment(c.Request.Context(), db, paymentID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// Refund issues a partial or full refund.
// POST /api/v1/payments/:id/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	paymentID := c.Param("id")
	if paymentID == "" {
		apperrors.HandleError(c, apperrors.NewBadRequestError("Missing payment id"))
		return
	}

	var req models.RefundPaymentRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	db := h.GetDB(c)
	payment, err := h.paymentService.RefundPayment(c.Request.Context(), db, paymentID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	logger.CtxInfo(c.Request.Context(), "refund accepted", "payment_id", paymentID)
	c.JSON(http.StatusOK, payment)
}

// List is the back-office payment listing.
// GET /api/v1/admin/payments?status=&flagged=&page=&page_size=
func (h *PaymentHandler) List(c *gin.Context) {
	page, pageSize := ParsePagination(c)
	status := models.PaymentStatus(c.Query("status"))
	flaggedOnly := c.Query("flagged") == "true"

	db := h.GetDB(c)
	payments, total, err := h.paymentService.ListPayments(db, status, flaggedOnly, page, pageSize)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payments":  payments,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
