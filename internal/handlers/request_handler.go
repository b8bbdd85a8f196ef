package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visionmatch/internal/negotiation"
	"visionmatch/internal/responses"
	"visionmatch/internal/services"
)

type RequestHandler struct {
	requestService RequestService
}

func NewRequestHandler(requestService RequestService) *RequestHandler {
	return &RequestHandler{requestService: requestService}
}

// CreateRequest handles POST /api/v1/projects/request
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	var in services.CreateRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	req, err := h.requestService.Create(c.Request.Context(), caller, in)
	if err != nil {
		fail(c, err, "Failed to create request")
		return
	}
	responses.Success(c, http.StatusCreated, req, "Request sent to creator")
}

// GetRequest handles GET /api/v1/projects/request/:id
func (h *RequestHandler) GetRequest(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	req, err := h.requestService.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		fail(c, err, "Request not found")
		return
	}
	responses.Success(c, http.StatusOK, req, "Request retrieved successfully")
}

// ListClientRequests handles GET /api/v1/projects/requests/:clientId
func (h *RequestHandler) ListClientRequests(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	reqs, err := h.requestService.ListByClient(c.Request.Context(), caller, c.Param("clientId"))
	if err != nil {
		fail(c, err, "Failed to retrieve requests")
		return
	}
	responses.Success(c, http.StatusOK, reqs, "Requests retrieved successfully")
}

// ListCreatorRequests handles GET /api/v1/projects/creator-requests/:creatorId
func (h *RequestHandler) ListCreatorRequests(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	reqs, err := h.requestService.ListByCreator(c.Request.Context(), caller, c.Param("creatorId"))
	if err != nil {
		fail(c, err, "Failed to retrieve requests")
		return
	}
	responses.Success(c, http.StatusOK, reqs, "Requests retrieved successfully")
}

// Respond handles POST /api/v1/project-request/:id/respond
func (h *RequestHandler) Respond(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	var body struct {
		Action  string `json:"action" binding:"required"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	action, err := negotiation.ParseAction(body.Action)
	if err != nil {
		fail(c, err, "Action must be accept, negotiate or decline")
		return
	}

	result, err := h.requestService.Respond(c.Request.Context(), caller, c.Param("id"), action, body.Message)
	if err != nil {
		fail(c, err, "Failed to update request")
		return
	}
	responses.Success(c, http.StatusOK, result, "Request "+string(result.Request.Status))
}
