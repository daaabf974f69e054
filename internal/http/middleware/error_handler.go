package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/shared/apperr"
)

func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ErrorHandler renders the last pushed error as JSON. Public messages only;
// internal detail stays in the logs unless devMode is on.
func ErrorHandler(l *slog.Logger, devMode bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := apperr.HTTPStatus(err)
		publicMsg := apperr.PublicMessage(err)
		rid := GetRequestID(c)

		l.LogAttrs(c.Request.Context(), slog.LevelError, "request_failed",
			slog.String("request_id", rid),
			slog.Int("status", status),
			slog.Any("err", err),
		)

		payload := gin.H{
			"message":    publicMsg,
			"request_id": rid,
		}
		if ae, ok := apperr.As(err); ok && len(ae.Fields) > 0 {
			payload["fields"] = ae.Fields
		}
		if devMode {
			payload["error"] = err.Error()
		}
		c.AbortWithStatusJSON(status, payload)
	}
}
