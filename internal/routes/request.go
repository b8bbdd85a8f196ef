package routes

import (
	"github.com/gin-gonic/gin"

	"visionmatch/internal/handlers"
	"visionmatch/internal/middlewares"
	"visionmatch/internal/models"
)

type RequestRoutes struct {
	handler      *handlers.RequestHandler
	authenticate gin.HandlerFunc
}

func NewRequestRoutes(handler *handlers.RequestHandler, authenticate gin.HandlerFunc) *RequestRoutes {
	return &RequestRoutes{handler: handler, authenticate: authenticate}
}

func (r *RequestRoutes) RegisterRoutes(router *gin.RouterGroup) {
	projects := router.Group("/projects")
	projects.Use(r.authenticate)
	{
		projects.POST("/request", r.handler.CreateRequest)
		projects.GET("/request/:id", r.handler.GetRequest)
		projects.GET("/requests/:clientId", r.handler.ListClientRequests)
		projects.GET("/creator-requests/:creatorId", middlewares.RequireRole(models.RoleCreator), r.handler.ListCreatorRequests)
	}

	respond := router.Group("/project-request")
	respond.Use(r.authenticate, middlewares.RequireRole(models.RoleCreator))
	respond.POST("/:id/respond", r.handler.Respond)
}
