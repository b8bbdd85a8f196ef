package routes

import (
	"github.com/gin-gonic/gin"

	"visionmatch/internal/handlers"
	"visionmatch/internal/middlewares"
	"visionmatch/internal/models"
)

type EscrowRoutes struct {
	handler      *handlers.PaymentHandler
	authenticate gin.HandlerFunc
}

func NewEscrowRoutes(handler *handlers.PaymentHandler, authenticate gin.HandlerFunc) *EscrowRoutes {
	return &EscrowRoutes{handler: handler, authenticate: authenticate}
}

func (r *EscrowRoutes) RegisterRoutes(router *gin.RouterGroup) {
	escrow := router.Group("/escrow")
	escrow.Use(r.authenticate)
	{
		escrow.POST("/create-order", r.handler.CreateOrder)
		escrow.POST("/verify-payment", r.handler.VerifyPayment)
		escrow.POST("/confirm", r.handler.Release)
		escrow.GET("/payment/:id", r.handler.Status)
		escrow.GET("/:requestId/status", r.handler.StatusByRequest)
	}

	bookings := router.Group("/bookings")
	bookings.Use(r.authenticate)
	{
		bookings.GET("/:id", r.handler.GetBooking)
		bookings.GET("/client/:clientId", r.handler.ListClientBookings)
		bookings.POST("/:id/confirm-event", r.handler.ConfirmEvent)
	}

	router.GET("/creators/:creatorId/balance", r.authenticate, middlewares.RequireRole(models.RoleCreator), r.handler.Balance)
}
