// Package httputil provides HTTP utilities including consistent error responses.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/launchdeck/launchdeck/internal/pkg/logger"
)

// ErrorResponse is the body of every error returned by the API.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Error codes let clients branch without parsing messages.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeBadGateway         = "BAD_GATEWAY"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeInvalidJSON        = "INVALID_JSON"
	CodeRequestTooLarge    = "REQUEST_TOO_LARGE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeNotDeployable      = "NOT_DEPLOYABLE"
	CodeDeploymentInFlight = "DEPLOYMENT_IN_FLIGHT"
)

// WriteError writes a JSON error body with the given status. Details are
// sanitized before they are logged or returned. Server errors log at error
// level, client errors at warn.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details string) {
	resp := ErrorResponse{
		Error:     message,
		Code:      code,
		Details:   SanitizeString(details),
		RequestID: chimiddleware.GetReqID(r.Context()),
	}

	log := logger.Default().With(
		"status", status,
		"code", code,
		"method", r.Method,
		"path", r.URL.Path,
	)
	if resp.RequestID != "" {
		log = log.With("request_id", resp.RequestID)
	}
	if resp.Details != "" {
		log = log.With("details", resp.Details)
	}
	if status >= http.StatusInternalServerError {
		log.Error(message)
	} else {
		log.Warn(message)
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}

func errorDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusBadRequest, CodeBadRequest, message, "")
}

// ValidationFailed writes a 422 error for a well-formed but invalid request.
func ValidationFailed(w http.ResponseWriter, r *http.Request, message, details string) {
	WriteError(w, r, http.StatusUnprocessableEntity, CodeValidationFailed, message, details)
}

func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = "Not found"
	}
	WriteError(w, r, http.StatusNotFound, CodeNotFound, message, "")
}

// Conflict writes a 409. An empty code defaults to CONFLICT.
func Conflict(w http.ResponseWriter, r *http.Request, code, message string) {
	if code == "" {
		code = CodeConflict
	}
	WriteError(w, r, http.StatusConflict, code, message, "")
}

func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	WriteError(w, r, http.StatusInternalServerError, CodeInternalError, "Internal server error", errorDetails(err))
}

func ServiceUnavailable(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = "Service unavailable"
	}
	WriteError(w, r, http.StatusServiceUnavailable, CodeServiceUnavailable, message, "")
}

// BadGateway writes a 502, used when the deployment worker cannot be
// reached.
func BadGateway(w http.ResponseWriter, r *http.Request, message string, err error) {
	WriteError(w, r, http.StatusBadGateway, CodeBadGateway, message, errorDetails(err))
}

// InvalidJSON writes a 400 that points at what is wrong with the body.
func InvalidJSON(w http.ResponseWriter, r *http.Request, err error) {
	WriteError(w, r, http.StatusBadRequest, CodeInvalidJSON, "Invalid JSON in request body", describeJSONError(err))
}

func describeJSONError(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, io.EOF):
		return "Request body is empty"
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "Incomplete JSON body"
	case errors.As(err, &syntaxErr):
		return "Syntax error at offset " + humanize.Comma(syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return "Field '" + typeErr.Field + "' has wrong type, expected " + typeErr.Type.String()
	default:
		return err.Error()
	}
}

// RequestTooLarge writes a 413 naming the size limit.
func RequestTooLarge(w http.ResponseWriter, r *http.Request, maxSize int64) {
	details := ""
	if maxSize > 0 {
		details = "Maximum allowed size: " + humanize.IBytes(uint64(maxSize))
	}
	WriteError(w, r, http.StatusRequestEntityTooLarge, CodeRequestTooLarge, "Request body too large", details)
}

func TooManyRequests(w http.ResponseWriter, r *http.Request, message string) {
	if message == "" {
		message = "Too many requests"
	}
	WriteError(w, r, http.StatusTooManyRequests, CodeRateLimited, message, "Please wait before retrying")
}
