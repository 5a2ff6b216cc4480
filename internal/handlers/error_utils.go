package handlers

import (
	"errors"
	"net/http"

	"noisewatch/internal/middleware"
	contextutils "noisewatch/internal/utils"

	"github.com/gin-gonic/gin"
)

// HandleAppError sends the error response for err. The status mapping lives in middleware.HTTPStatus.
func HandleAppError(c *gin.Context, err error) {
	middleware.HandleAppError(c, err)
}

// HandleValidationError reports a single invalid request field
func HandleValidationError(c *gin.Context, field, reason string) {
	HandleAppError(c, contextutils.WrapErrorf(contextutils.ErrValidationFailed, "invalid %s: %s", field, reason))
}

// bindJSON decodes the request body into dest and writes a 400 response on failure
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		HandleAppError(c, bodyError(err))
		return false
	}
	return true
}

// bodyError classifies a request body decoding failure
func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return contextutils.WrapErrorf(contextutils.ErrPayloadTooLarge, "request body exceeds %d bytes", maxErr.Limit)
	}
	return contextutils.NewAppErrorWithCause(
		contextutils.ErrorCodeInvalidFormat,
		contextutils.SeverityWarn,
		"Invalid request body",
		err.Error(),
		err,
	)
}
