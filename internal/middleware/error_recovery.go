package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"noisewatch/internal/observability"
	contextutils "noisewatch/internal/utils"

	"github.com/gin-gonic/gin"
)

// GenericErrorMessage is returned for every 5xx response
const GenericErrorMessage = "Internal server error"

// ErrorRecoveryMiddleware turns panics into a logged 500 response
func ErrorRecoveryMiddleware(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				var panicErr error
				if e, ok := r.(error); ok {
					panicErr = e
				} else {
					panicErr = fmt.Errorf("panic: %v", r)
				}

				if logger != nil {
					logger.Error(c.Request.Context(), "Panic recovered", panicErr, map[string]interface{}{
						"method": c.Request.Method,
						"path":   c.Request.URL.Path,
						"stack":  string(debug.Stack()),
					})
				}

				appErr := contextutils.NewAppErrorWithCause(
					contextutils.ErrorCodeInternalError,
					contextutils.SeverityFatal,
					GenericErrorMessage,
					"A panic occurred while processing the request",
					panicErr,
				)
				HandleAppError(c, appErr)
				c.Abort()
			}
		}()

		c.Next()
	}
}

// HandleAppError writes the response for err and records it on the gin context so the request
// logger can report it. Non-AppErrors are treated as internal errors.
func HandleAppError(c *gin.Context, err error) {
	_ = c.Error(err)

	var appErr *contextutils.AppError
	if !contextutils.AsError(err, &appErr) {
		appErr = contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInternalError,
			contextutils.SeverityError,
			GenericErrorMessage,
			"",
			err,
		)
	}
	StandardizeAppError(c, appErr)
}

// StandardizeAppError sends a structured error response. Internal failures never expose their
// message or cause to the client. localizedMessage follows the Accept-Language header.
func StandardizeAppError(c *gin.Context, err *contextutils.AppError) {
	statusCode := HTTPStatus(err.Code)
	localized := contextutils.GetLocalizedMessage(err.Code, contextutils.ParseLocale(primaryLanguage(c.GetHeader("Accept-Language"))))
	if statusCode >= http.StatusInternalServerError {
		c.JSON(statusCode, gin.H{
			"code":             string(err.Code),
			"error":            GenericErrorMessage,
			"message":          GenericErrorMessage,
			"localizedMessage": localized,
			"retryable":        contextutils.IsRetryable(err),
		})
		return
	}

	body := gin.H{
		"code":             string(err.Code),
		"error":            err.Message,
		"message":          err.Message,
		"localizedMessage": localized,
	}
	if d := clientDetails(err); d != "" {
		body["details"] = d
	}
	c.JSON(statusCode, body)
}

// clientDetails returns the details of a caller error unless they only repeat the sentinel text
func clientDetails(err *contextutils.AppError) string {
	var cause *contextutils.AppError
	if err.Cause != nil && contextutils.AsError(err.Cause, &cause) && err.Details == cause.Error() {
		return ""
	}
	return err.Details
}

// primaryLanguage returns the first tag of an Accept-Language header, without its quality value
func primaryLanguage(header string) string {
	tag, _, _ := strings.Cut(header, ",")
	tag, _, _ = strings.Cut(tag, ";")
	return strings.TrimSpace(tag)
}

// HTTPStatus maps AppError codes to HTTP status codes
func HTTPStatus(code contextutils.ErrorCode) int {
	switch code {
	case contextutils.ErrorCodeInvalidInput, contextutils.ErrorCodeMissingRequired,
		contextutils.ErrorCodeInvalidFormat, contextutils.ErrorCodeValidationFailed,
		contextutils.ErrorCodeInvalidCredentials, contextutils.ErrorCodeInvalidToken:
		return http.StatusBadRequest

	case contextutils.ErrorCodeUnauthorized, contextutils.ErrorCodeSessionExpired:
		return http.StatusUnauthorized

	case contextutils.ErrorCodeForbidden, contextutils.ErrorCodeEmailNotVerified:
		return http.StatusForbidden

	case contextutils.ErrorCodeRecordNotFound:
		return http.StatusNotFound

	case contextutils.ErrorCodeRecordExists, contextutils.ErrorCodeConflict:
		return http.StatusConflict

	case contextutils.ErrorCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge

	case contextutils.ErrorCodeRateLimit:
		return http.StatusTooManyRequests

	case contextutils.ErrorCodeTimeout:
		return http.StatusRequestTimeout

	case contextutils.ErrorCodeServiceUnavailable, contextutils.ErrorCodeDatabaseConnection:
		return http.StatusServiceUnavailable

	case contextutils.ErrorCodeMediaUpload:
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
