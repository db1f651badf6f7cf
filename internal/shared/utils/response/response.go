package response

import "github.com/gin-gonic/gin"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// StandardApiResponse is the envelope every endpoint answers with.
type StandardApiResponse struct {
	Status     string      `json:"status"`           // "success" or "error"
	StatusCode int         `json:"status_code"`      // HTTP status code
	Message    string      `json:"message"`          // Human-readable message
	Data       interface{} `json:"data,omitempty"`   // Payload for success
	Errors     interface{} `json:"errors,omitempty"` // Validation or error details
}

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// AbortJSON writes an error envelope and stops the handler chain.
func AbortJSON(c *gin.Context, code int, message string, errors interface{}) {
	c.AbortWithStatusJSON(code, StandardApiResponse{
		Status:     StatusError,
		StatusCode: code,
		Message:    message,
		Errors:     errors,
	})
}
