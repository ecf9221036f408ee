package middleware

import (
	"mime"
	"net/http"

	"truelens-inquiry-api/internal/delivery/http/response"

	"github.com/gin-gonic/gin"
)

// CSRFMiddleware rejects state-changing requests that are not JSON.
// Cross-site HTML forms cannot send application/json without a CORS preflight.
func CSRFMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || mediaType != "application/json" {
			response.Error(c, http.StatusUnsupportedMediaType, "Content-Type must be application/json.", nil)
			c.Abort()
			return
		}

		c.Next()
	}
}
