package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"payflow_backend/internal/services"
	"payflow_backend/internal/validator"
	"payflow_backend/pkg/apperrors"
)

// Providers retry aggressively on non-2xx, so the handler acknowledges
// everything the orchestrator accepts (including duplicates and orphans)
// and returns 400 only for signature and payload failures, which retries
// cannot fix.
type WebhookHandler struct {
	*BaseHandler
	paymentService *services.PaymentService
}

func NewWebhookHandler(v *validator.Validator, paymentService *services.PaymentService) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler:    NewBaseHandler(v),
		paymentService: paymentService,
	}
}

// Receive handles a provider notification.
// POST /api/v1/webhooks/:gateway
func (h *WebhookHandler) Receive(c *gin.Context) {
	gateway := c.Param("gateway")

	// Signature schemes are computed over the exact raw bytes, so the body
	// must be read before any binding touches it.
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		apperrors.HandleError(c, apperrors.ErrMalformedPayload)
		return
	}

	db := h.GetDB(c)
	resp, err := h.paymentService.HandleWebhook(c.Request.Context(), db, gateway, body, c.Request.Header)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
