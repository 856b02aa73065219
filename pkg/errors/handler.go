package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ErrorResponse represents the API error response format
type ErrorResponse struct {
	Error     bool                   `json:"error"`
	Kind      string                 `json:"kind"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// kindStatus maps failure kinds to HTTP status codes. The distinction
// between UselessInformation (406) and the other validation kinds (400)
// mirrors the "not acceptable" vs "bad request" severities of the
// upstream orchestrator.
var kindStatus = map[Kind]int{
	KindMalformedGraph:      http.StatusBadRequest,
	KindDuplicateIdentifier: http.StatusBadRequest,
	KindDanglingEdge:        http.StatusBadRequest,
	KindScopeViolation:      http.StatusBadRequest,
	KindUselessInformation:  http.StatusNotAcceptable,
	KindAlreadyExists:       http.StatusConflict,
	KindNotFound:            http.StatusNotFound,
	KindUnauthorized:        http.StatusUnauthorized,
	KindAdapterTransient:    http.StatusServiceUnavailable,
	KindAdapterFatal:        http.StatusBadGateway,
	KindInternal:            http.StatusInternalServerError,
}

// HTTPStatus returns the transport status for a failure kind.
func HTTPStatus(kind Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorHandler translates engine failures into HTTP responses
type ErrorHandler struct {
	logger *zap.Logger
	debug  bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
		debug:  debug,
	}
}

// Handle processes an error and sends the mapped HTTP response. Internal
// failures are logged with their full cause chain but surfaced opaquely.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	requestID := r.Header.Get("X-Request-ID")
	appErr := Internalize(err, "unexpected error")

	response := ErrorResponse{
		Error:     true,
		Kind:      string(appErr.Kind),
		Message:   appErr.Message,
		Details:   appErr.Details,
		RequestID: requestID,
	}

	switch appErr.Kind {
	case KindInternal:
		h.logger.Error("Internal error",
			zap.Error(appErr),
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.String("request_id", requestID),
		)
		if !h.debug {
			response.Message = "unexpected error - contact the administrator"
			response.Details = nil
		}
	case KindUnauthorized:
		h.logger.Debug("Unauthorized access attempt",
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
		)
	default:
		h.logger.Warn("Request failed",
			zap.String("kind", string(appErr.Kind)),
			zap.String("message", appErr.Message),
			zap.String("path", r.URL.Path),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(appErr.Kind))
	json.NewEncoder(w).Encode(response)
}
