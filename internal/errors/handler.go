package errors

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// ErrorResponse represents the error response structure.
type ErrorResponse struct {
	Error    ErrorDetails `json:"error"`
	TraceID  string       `json:"trace_id,omitempty"`
	Metadata interface{}  `json:"metadata,omitempty"`
}

// ErrorDetails contains the error details.
type ErrorDetails struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Description is the user-facing rendering of an error in chat.
type Description struct {
	Title  string
	Detail string
	Level  logrus.Level
}

// ErrorHandler turns errors into HTTP responses for the ops server and
// into short descriptions for chat replies, logging each at a level that
// matches its type.
type ErrorHandler struct {
	logger *logrus.Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

func levelFor(appErr *AppError) logrus.Level {
	switch appErr.Type {
	case ErrorTypeInternal, ErrorTypeServiceDown, ErrorTypeRemoteFailure:
		return logrus.ErrorLevel
	case ErrorTypeValidation, ErrorTypeNotFound, ErrorTypeStateConflict,
		ErrorTypePartialFailure, ErrorTypeRefreshFailure, ErrorTypeForbidden:
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}

func asAppError(err error) *AppError {
	if appErr, ok := GetAppError(err); ok {
		return appErr
	}
	return WrapInternalError(err, "An unexpected error occurred")
}

// HandleError handles an error and writes the appropriate response.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	traceID := r.Header.Get("X-Request-ID")
	appErr := asAppError(err)

	h.logger.WithFields(logrus.Fields{
		"error_type": appErr.Type,
		"error_code": appErr.Code,
		"trace_id":   traceID,
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote_ip":  r.RemoteAddr,
	}).Log(levelFor(appErr), appErr.Error())

	response := ErrorResponse{
		Error: ErrorDetails{
			Type:    appErr.Type,
			Message: appErr.Message,
			Code:    appErr.Code,
			Details: appErr.Details,
		},
		TraceID: traceID,
	}

	h.writeJSON(w, appErr.HTTPStatus, response)
}

// Describe logs err and returns the text shown to the user who triggered it.
// Remote diagnostics are passed through verbatim.
func (h *ErrorHandler) Describe(err error, fields logrus.Fields) Description {
	appErr := asAppError(err)
	level := levelFor(appErr)

	h.logger.WithFields(fields).WithField("error_type", appErr.Type).Log(level, appErr.Error())

	d := Description{Level: level, Detail: appErr.Cause()}
	switch appErr.Type {
	case ErrorTypeValidation:
		d.Title = "Invalid input"
		d.Detail = appErr.Message
	case ErrorTypeBusy:
		d.Title = "Please wait"
		d.Detail = appErr.Message
	case ErrorTypeExpired:
		d.Title = "Panel expired"
		d.Detail = "Open a new panel to keep managing your applications."
	case ErrorTypeForbidden:
		d.Title = "Not allowed"
		d.Detail = appErr.Message
	case ErrorTypeStateConflict:
		d.Title = "Nothing to do"
	case ErrorTypeRemoteFailure, ErrorTypeServiceDown:
		d.Title = appErr.Message
	default:
		d.Title = "Something went wrong"
	}
	return d
}

// HandleNotFound handles 404 errors.
func (h *ErrorHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.HandleError(w, r, NewNotFoundError("endpoint"))
}

// HandleMethodNotAllowed handles 405 errors.
func (h *ErrorHandler) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.HandleError(w, r, New(ErrorTypeValidation, "Method not allowed", http.StatusMethodNotAllowed))
}

// HandlePanic handles panics in HTTP handlers.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	h.logger.WithFields(logrus.Fields{
		"panic":     recovered,
		"method":    r.Method,
		"path":      r.URL.Path,
		"remote_ip": r.RemoteAddr,
		"trace_id":  r.Header.Get("X-Request-ID"),
	}).Error("Panic recovered in HTTP handler")

	h.HandleError(w, r, NewInternalError("An unexpected error occurred"))
}

func (h *ErrorHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Failed to encode error response")
	}
}

// Middleware returns an error handling middleware.
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				h.HandlePanic(w, r, recovered)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
