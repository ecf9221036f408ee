package middleware

import (
	"context"

	"truelens-inquiry-api/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an ID and copies the caller's IP and
// user agent into the request context for the usecase audit trail
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		c.Set("RequestID", id)
		c.Header(requestIDHeader, id)

		ctx := context.WithValue(c.Request.Context(), domain.KeyRequestID, id)
		ctx = context.WithValue(ctx, domain.KeyClientIP, c.ClientIP())
		ctx = context.WithValue(ctx, domain.KeyUserAgent, c.GetHeader("User-Agent"))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
