package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/certify-api/pkg/errors"
)

// Response wraps error responses and the envelope-style endpoints
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError sends an error response. Internal errors never leak their cause.
func RespondWithError(c *gin.Context, err error) {
	statusCode := errors.StatusCode(err)
	kind := errors.KindOf(err)
	message := "internal server error"

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && kind != errors.KindInternal {
		message = appErr.Message
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(statusCode, Response{
		Success: false,
		Error: &Error{
			Code:    statusCode,
			Kind:    kind.String(),
			Message: message,
		},
	})
}
