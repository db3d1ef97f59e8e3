package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"selaski/internal/apperr"
)

// envelope wraps every JSON body the API writes.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Success: status < http.StatusBadRequest, Message: message, Data: data})
}

// respondError renders err and aborts the chain. Internal details are logged, never sent.
func respondError(c *gin.Context, err error) {
	status := statusFor(apperr.KindOf(err))
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Internal(err)
	}
	if status >= http.StatusInternalServerError {
		loggerFrom(c).Error("request failed",
			"request_id", requestIDFrom(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err,
		)
	}
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: appErr.Message})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
