package routes

import (
	"github.com/gin-gonic/gin"

	"visionmatch/internal/handlers"
)

type NegotiationRoutes struct {
	handler      *handlers.NegotiationHandler
	authenticate gin.HandlerFunc
}

func NewNegotiationRoutes(handler *handlers.NegotiationHandler, authenticate gin.HandlerFunc) *NegotiationRoutes {
	return &NegotiationRoutes{handler: handler, authenticate: authenticate}
}

func (r *NegotiationRoutes) RegisterRoutes(router *gin.RouterGroup) {
	feed := router.Group("/projects/:id")
	feed.Use(r.authenticate)
	{
		feed.GET("/messages", r.handler.ListMessages)
		feed.POST("/messages", r.handler.PostMessage)
		feed.GET("/negotiation", r.handler.GetNegotiation)
	}
}
