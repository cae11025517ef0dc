// Package middleware provides HTTP middleware for the ATS sync service.
//
// Import Path: hireguard.io/atssync/internal/api/middleware
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "hireguard.io/atssync/internal/pkg/errors"
	"hireguard.io/atssync/internal/pkg/logger"
)

// ErrorHandler renders the last error attached with c.Error() as
// {code, message}. AppErrors keep their status; anything else is a 500
// whose cause is logged but never returned to the caller.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		rid := GetRequestID(c.Request.Context())

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			logger.Warn("Request error",
				zap.String("request_id", rid),
				zap.String("path", c.FullPath()),
				zap.String("code", appErr.Code),
				zap.String("message", appErr.Message),
				zap.Int("status", appErr.HTTPStatus),
				zap.Error(appErr.Err),
			)
			body := gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			}
			if len(appErr.Params) > 0 {
				body["params"] = appErr.Params
			}
			c.JSON(appErr.HTTPStatus, body)
			return
		}

		logger.Error("Unhandled request error",
			zap.String("request_id", rid),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    apperrors.CodeInternal,
			"message": "An internal error occurred",
		})
	}
}
