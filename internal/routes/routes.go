package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"payflow_backend/internal/handlers"
)

// SetupRoutes wires the HTTP surface. Payments and webhooks are public
// (webhook authenticity is enforced per-gateway via signatures); the admin
// listing sits under its own group so deployment-level auth can be attached
// in front of it.
func SetupRoutes(r *gin.Engine, paymentHandler *handlers.PaymentHandler, webhookHandler *handlers.WebhookHandler) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		payments := v1.Group("/payments")
		{
			payments.POST("", paymentHandler.Initiate)
			payments.GET("/:id", paymentHandler.GetStatus)
			payments.POST("/:id/verify", paymentHandler.Verify)
			payments.POST("/:id/refund", paymentHandler.Refund)
		}

		v1.POST("/webhooks/:gateway", webhookHandler.Receive)

		admin := v1.Group("/admin")
		{
			admin.GET("/payments", paymentHandler.List)
		}
	}
}
