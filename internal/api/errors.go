package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/FACorreiaa/go-posts-api/internal/types"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

const (
	msgDuplicateIdentity  = "Email already exists"
	msgInvalidCredentials = "Invalid credentials"
	msgUnauthorized       = "Unauthorized"
	msgForbidden          = "Forbidden resource"
	msgNotFound           = "Resource not found"
	msgTooLarge           = "Request body too large"
	msgInternal           = "Internal server error"
)

// ErrorStatus maps an error kind to its HTTP status and client-visible message.
// Only validation failures echo their own text; everything else gets a fixed message.
func ErrorStatus(err error) (int, string) {
	var maxBytesError *http.MaxBytesError

	switch {
	case errors.Is(err, types.ErrDuplicateIdentity):
		return http.StatusForbidden, msgDuplicateIdentity
	case errors.Is(err, types.ErrInvalidCredentials):
		return http.StatusForbidden, msgInvalidCredentials
	case errors.Is(err, types.ErrUnauthorized), errors.Is(err, types.ErrInvalidToken):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, types.ErrForbidden):
		return http.StatusForbidden, msgForbidden
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.As(err, &maxBytesError):
		return http.StatusRequestEntityTooLarge, msgTooLarge
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrUnsupportedImage):
		return http.StatusBadRequest, validationMessage(err)
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func validationMessage(err error) string {
	msg := err.Error()
	for _, prefix := range []string{types.ErrValidation.Error() + ": ", types.ErrUnsupportedImage.Error() + ": "} {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}

// ErrorResponse writes the uniform error envelope with an explicit status and message.
func ErrorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	WriteJSONResponse(w, r, status, types.ErrorEnvelope{
		StatusCode: status,
		Message:    message,
		Error:      http.StatusText(status),
		Path:       r.URL.Path,
		Timestamp:  time.Now().UTC().Format(timestampLayout),
	})
}

// WriteError translates err through ErrorStatus and writes the envelope.
// Server errors are logged with the internal cause, which never reaches the client.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, message := ErrorStatus(err)
	if logger != nil {
		attrs := []any{
			slog.Int("status", status),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err),
		}
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(r.Context(), "Request failed", attrs...)
		} else {
			logger.DebugContext(r.Context(), "Request rejected", attrs...)
		}
	}
	ErrorResponse(w, r, status, message)
}

// NotFoundHandler and MethodNotAllowedHandler render router-level misses in the same envelope.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, http.StatusNotFound, "Cannot "+r.Method+" "+r.URL.Path)
}

func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, http.StatusMethodNotAllowed, "Method "+r.Method+" not allowed")
}
