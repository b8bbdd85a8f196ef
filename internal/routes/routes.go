package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"visionmatch/internal/handlers"
)

type Handlers struct {
	Auth        *handlers.AuthHandler
	Requests    *handlers.RequestHandler
	Negotiation *handlers.NegotiationHandler
	Payments    *handlers.PaymentHandler
}

// RegisterRoutes mounts the API under /api/v1. authenticate guards every
// route except register, login and refresh.
func RegisterRoutes(router *gin.Engine, h Handlers, authenticate gin.HandlerFunc, gatherer prometheus.Gatherer) {
	api := router.Group("/api/v1")

	NewAuthRoutes(h.Auth, authenticate).RegisterRoutes(api)
	NewRequestRoutes(h.Requests, authenticate).RegisterRoutes(api)
	NewNegotiationRoutes(h.Negotiation, authenticate).RegisterRoutes(api)
	NewEscrowRoutes(h.Payments, authenticate).RegisterRoutes(api)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}
