package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"visionmatch/internal/models"
	"visionmatch/internal/negotiation"
	"visionmatch/internal/responses"
	"visionmatch/internal/services"
)

type NegotiationHandler struct {
	negotiationService NegotiationService
}

func NewNegotiationHandler(negotiationService NegotiationService) *NegotiationHandler {
	return &NegotiationHandler{negotiationService: negotiationService}
}

// ListMessages handles GET /api/v1/projects/:id/messages. The feed version is
// exposed as an ETag; a matching If-None-Match yields 304.
func (h *NegotiationHandler) ListMessages(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	feed, err := h.negotiationService.ListMessages(c.Request.Context(), caller, c.Param("id"), c.Query("after"), parseETag(c.GetHeader("If-None-Match")))
	if err != nil {
		fail(c, err, "Failed to load messages")
		return
	}
	if feed.Version > 0 {
		c.Header("ETag", formatETag(feed.Version))
	}
	if feed.NotModified {
		c.Status(http.StatusNotModified)
		return
	}
	responses.Feed(c, feed.Messages, feed.Version, "Messages retrieved successfully")
}

type postMessageBody struct {
	Type         models.MessageType `json:"type"`
	Message      string             `json:"message"`
	Text         string             `json:"text"`
	Price        any                `json:"price"`
	Deliverables string             `json:"deliverables"`
}

// PostMessage handles POST /api/v1/projects/:id/messages for text, offers,
// counters and acceptances.
func (h *NegotiationHandler) PostMessage(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	var body postMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	in := services.PostMessageInput{
		Type:         body.Type,
		Text:         body.Message,
		Deliverables: body.Deliverables,
	}
	if in.Text == "" {
		in.Text = body.Text
	}
	if body.Price != nil {
		p, ok := negotiation.ParsePrice(body.Price)
		if !ok || p <= 0 {
			fail(c, negotiation.ErrInvalidPrice, "Invalid price")
			return
		}
		in.Price = &p
	}

	msg, err := h.negotiationService.PostMessage(c.Request.Context(), caller, c.Param("id"), in)
	if err != nil {
		fail(c, err, "Failed to send message")
		return
	}
	responses.Success(c, http.StatusCreated, msg, "Message sent")
}

// GetNegotiation handles GET /api/v1/projects/:id/negotiation
func (h *NegotiationHandler) GetNegotiation(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	view, err := h.negotiationService.GetNegotiation(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		fail(c, err, "Failed to load negotiation")
		return
	}
	responses.Success(c, http.StatusOK, view, "Negotiation retrieved successfully")
}

func formatETag(version int64) string {
	return `"` + strconv.FormatInt(version, 10) + `"`
}

// parseETag returns the version in an If-None-Match header, 0 when absent or
// not one of ours.
func parseETag(header string) int64 {
	tag := strings.TrimPrefix(strings.TrimSpace(header), "W/")
	v, err := strconv.ParseInt(strings.Trim(tag, `"`), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
