package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/certify-api/pkg/httputil"
)

// ErrorHandler renders errors that handlers attached with c.Error but did
// not write a response for.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		httputil.RespondWithError(c, c.Errors.Last().Err)
	}
}
