package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MaxtDesign/MaxtPM/internal/response"
)

// Recovery turns a panic into a 500 envelope. The stack is only exposed to
// the client when exposeStack is set, which the server does outside
// production.
func Recovery(log zerolog.Logger, exposeStack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				log.Error().
					Interface("error", r).
					Bytes("stack", stack).
					Str("request_id", GetRequestID(c)).
					Msg("panic recovered")

				var details any
				if exposeStack {
					details = gin.H{"panic": fmt.Sprint(r), "stack": string(stack)}
				}
				response.Fail(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal Server Error", details)
			}
		}()
		c.Next()
	}
}
