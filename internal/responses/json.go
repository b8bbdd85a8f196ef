package responses

import "github.com/gin-gonic/gin"

type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// FeedResponse repeats the message feed at the top level for pollers that
// read messages and version without unwrapping data.
type FeedResponse struct {
	APIResponse
	Messages interface{} `json:"messages"`
	Version  int64       `json:"version"`
}

func Success(c *gin.Context, statusCode int, data interface{}, message string) {
	c.JSON(statusCode, APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func Fail(c *gin.Context, statusCode int, err error, message string) {
	resp := APIResponse{
		Status:  "error",
		Message: message,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(statusCode, resp)
}

func Feed(c *gin.Context, messages interface{}, version int64, message string) {
	c.JSON(200, FeedResponse{
		APIResponse: APIResponse{
			Status:  "success",
			Message: message,
			Data:    gin.H{"messages": messages, "version": version},
		},
		Messages: messages,
		Version:  version,
	})
}
