package response

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"upload-server-go/internal/sentryx"
)

// Error writes a standard JSON error envelope. Server-class statuses are
// reported to Sentry.
func Error(w http.ResponseWriter, statusCode int, message string) {
	if statusCode >= http.StatusInternalServerError {
		sentryx.CaptureMessage(sentry.LevelError, "http_error status=%d message=%s", statusCode, message)
	}
	JSON(w, statusCode, map[string]string{"error": message})
}

// ErrorWithCause writes the error envelope and reports cause for
// server-class statuses.
func ErrorWithCause(w http.ResponseWriter, statusCode int, message string, cause error) {
	if statusCode >= http.StatusInternalServerError {
		sentryx.CaptureError(cause, "http_error status=%d message=%s", statusCode, message)
	}
	JSON(w, statusCode, map[string]string{"error": message})
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}
