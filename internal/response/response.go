// Package response writes the JSON envelope shared by every endpoint:
// {success, data, message, error: {code, message, details}}.
package response

import (
	"github.com/gin-gonic/gin"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

func OK(c *gin.Context, status int, data any, message string) {
	c.JSON(status, Envelope{Success: true, Data: data, Message: message})
}

// Fail aborts the handler chain.
func Fail(c *gin.Context, status int, code, message string, details any) {
	c.AbortWithStatusJSON(status, Envelope{
		Success: false,
		Error:   &Error{Code: code, Message: message, Details: details},
	})
}

// FieldError is one entry of a VALIDATION_ERROR details list.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
