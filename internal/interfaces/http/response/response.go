package response

import (
	"github.com/gin-gonic/gin"
	domainerrors "lexmatch.backend/internal/domain/errors"
)

// Success sends a success response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// Error sends an error response. Anything that is not an AppError becomes
// an opaque internal error.
func Error(c *gin.Context, err error) {
	appErr, ok := domainerrors.AsAppError(err)
	if !ok {
		appErr = domainerrors.InternalError(err)
	}
	if appErr.Status >= 500 {
		_ = c.Error(err)
	}

	c.JSON(appErr.Status, gin.H{
		"code":      appErr.Code,
		"message":   appErr.Message,
		"retryable": appErr.Retryable(),
	})
}

// ErrorWithError sends an error response with a specific status, code and message
func ErrorWithError(c *gin.Context, status int, code string, message string) {
	c.JSON(status, gin.H{
		"code":      code,
		"message":   message,
		"retryable": false,
	})
}

// Abort is Error followed by c.Abort, for middleware
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}
