package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func NewRouter(h *Handler) *gin.Engine {
	r := gin.Default()
	r.Use(Trace())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// the gateway authenticates by event verification, not by JWT
	r.POST("/webhooks/gateway", h.GatewayWebhook)

	v1 := r.Group("/v1")
	{
		v1.Use(JWTAuth())

		v1.POST("/bookings", h.CreateBooking)
		v1.POST("/payments", h.CreatePayment)
		v1.POST("/payments/:id/charge", h.IssueCharge)

		v1.POST("/rates", RequireRole("ADMIN"), h.InsertRate)

		mon := v1.Group("/monitor")
		mon.GET("/webhooks", h.MonitorWebhooks)
		mon.GET("/webhooks/:eventId", h.MonitorWebhookEvent)
		mon.GET("/bookings/:id", h.MonitorBooking)
		mon.GET("/rates", h.MonitorRates)
	}

	return r
}
