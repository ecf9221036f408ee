package middleware

import (
	"errors"
	"net/http"

	"truelens-inquiry-api/internal/delivery/http/response"
	"truelens-inquiry-api/pkg/apperror"
	"truelens-inquiry-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the last error attached with c.Error.
// Details are only passed to the client when showDetails is set (development).
func ErrorHandler(showDetails bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			appErr = apperror.New(http.StatusInternalServerError, "An unexpected error occurred. Please try again later.", err)
		}

		if appErr.Code >= http.StatusInternalServerError {
			logger.Log.Error("Request failed",
				"request_id", c.GetString("RequestID"),
				"path", c.FullPath(),
				"status", appErr.Code,
				"error", errString(appErr.Err),
			)
		}

		var details interface{}
		if showDetails {
			details = appErr.Details
			if details == nil && appErr.Err != nil {
				details = appErr.Err.Error()
			}
		}
		response.Error(c, appErr.Code, appErr.Message, details)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
