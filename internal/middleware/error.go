package middleware

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/scheduler-api/pkg/errors"
)

// ErrorResponse is the envelope returned for failed requests.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// ErrorHandler translates errors attached via c.Error into HTTP
// responses. AppError codes carry their own status; anything else is a
// 500 with the message hidden.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		traceID := c.GetString(ContextRequestID)

		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("trace_id", traceID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		lastErr := c.Errors.Last().Err

		status := http.StatusInternalServerError
		message := "internal server error"
		var appErr *errors.AppError
		if stderrors.As(lastErr, &appErr) {
			status = appErr.StatusCode()
			message = appErr.Message
		}

		c.JSON(status, ErrorResponse{
			Code:    status,
			Message: message,
			TraceID: traceID,
		})
	}
}
