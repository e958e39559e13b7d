package response

import (
	"BloodLink/pkg/errors"
	"BloodLink/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Success writes {"status":"success","message":msg} merged with data. A gin.H
// payload is flattened into the top level; anything else goes under "data".
func Success(c *gin.Context, msg string, data interface{}) {
	body := gin.H{"status": StatusSuccess}
	if msg != "" {
		body["message"] = msg
	}
	switch d := data.(type) {
	case nil:
	case gin.H:
		for k, v := range d {
			body[k] = v
		}
	default:
		body["data"] = d
	}
	c.JSON(http.StatusOK, body)
}

// Fail writes an error body with an explicit status code.
func Fail(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"status": StatusError, "message": msg})
}

// Error maps a coded error onto its HTTP status. Uncoded errors are 500.
func Error(c *gin.Context, err error) {
	code := errors.GetCode(err)
	if code == 0 {
		code = http.StatusInternalServerError
	}
	if code >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Int("code", code),
			zap.Error(err),
			zap.String("stack", errors.GetStack(err)),
		)
	}
	_ = c.Error(err)
	Fail(c, code, errors.GetMessage(err))
}
