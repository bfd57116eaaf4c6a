package errors

import (
	"encoding/json"
	"net/http"

	"github.com/zsiec/cloudstream/internal/logger"
)

// ErrorResponse is the JSON envelope for every API error.
type ErrorResponse struct {
	Error     ErrorDetails `json:"error"`
	RequestID string       `json:"request_id,omitempty"`
}

type ErrorDetails struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorHandler renders errors as JSON and logs them at a level matching
// their status.
type ErrorHandler struct {
	logger logger.Logger
}

func NewErrorHandler(log logger.Logger) *ErrorHandler {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &ErrorHandler{logger: log}
}

// HandleError handles an error and writes the appropriate response.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := GetAppError(err)
	if !ok {
		appErr = WrapInternalError(err, "an unexpected error occurred")
	}

	requestID := logger.GetRequestID(r.Context())
	entry := logger.FromContext(r.Context())
	if _, isNull := entry.(logger.NullLogger); isNull {
		entry = h.logger
	}
	entry = entry.WithFields(map[string]interface{}{
		"error_type": appErr.Type,
		"status":     appErr.HTTPStatus,
		"method":     r.Method,
		"path":       r.URL.Path,
	})

	switch {
	case appErr.HTTPStatus >= http.StatusInternalServerError:
		entry.Error(appErr.Error())
	case appErr.HTTPStatus == http.StatusNotFound:
		entry.Debug(appErr.Error())
	default:
		entry.Warn(appErr.Error())
	}

	h.writeJSON(w, appErr.HTTPStatus, ErrorResponse{
		Error: ErrorDetails{
			Type:    appErr.Type,
			Message: appErr.Message,
			Details: appErr.Details,
		},
		RequestID: requestID,
	})
}

func (h *ErrorHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.HandleError(w, r, NewNotFoundError("endpoint"))
}

func (h *ErrorHandler) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.HandleError(w, r, New(ErrorTypeMethodNotAllowed, "method not allowed", http.StatusMethodNotAllowed))
}

func (h *ErrorHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Failed to encode error response")
	}
}

// Middleware recovers panics in downstream handlers.
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				h.logger.WithFields(map[string]interface{}{
					"panic":      recovered,
					"path":       r.URL.Path,
					"request_id": logger.GetRequestID(r.Context()),
				}).Error("Panic recovered in HTTP handler")
				h.HandleError(w, r, New(ErrorTypeInternal, "an unexpected error occurred", http.StatusInternalServerError))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
