package errors

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietHandler() *ErrorHandler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewErrorHandler(logger)
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	return response
}

func TestHandleError(t *testing.T) {
	handler := quietHandler()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   ErrorType
	}{
		{"validation", NewValidationError("RAM must be a whole number"), http.StatusBadRequest, ErrorTypeValidation},
		{"remote failure", WrapRemoteFailure(errors.New("502 from provider"), "Restart"), http.StatusBadGateway, ErrorTypeRemoteFailure},
		{"gateway down", NewServiceDownError("discord"), http.StatusServiceUnavailable, ErrorTypeServiceDown},
		{"plain error", errors.New("kaboom"), http.StatusInternalServerError, ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("X-Request-ID", "req-7")
			rr := httptest.NewRecorder()

			handler.HandleError(rr, req, tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			response := decode(t, rr)
			assert.Equal(t, tt.wantType, response.Error.Type)
			assert.NotEmpty(t, response.Error.Message)
			assert.Equal(t, "req-7", response.TraceID)
		})
	}
}

func TestRoutingErrors(t *testing.T) {
	handler := quietHandler()

	rr := httptest.NewRecorder()
	handler.HandleNotFound(rr, httptest.NewRequest(http.MethodGet, "/panels", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "endpoint not found", decode(t, rr).Error.Message)

	rr = httptest.NewRecorder()
	handler.HandleMethodNotAllowed(rr, httptest.NewRequest(http.MethodDelete, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, ErrorTypeValidation, decode(t, rr).Error.Type)
}

func TestMiddlewareRecoversPanics(t *testing.T) {
	handler := quietHandler()
	protected := handler.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("render exploded")
	}))

	rr := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		protected.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/version", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	response := decode(t, rr)
	assert.Equal(t, ErrorTypeInternal, response.Error.Type)
	assert.Contains(t, response.Error.Message, "unexpected error")
}

func TestDescribe(t *testing.T) {
	handler := quietHandler()

	tests := []struct {
		name       string
		err        error
		wantTitle  string
		wantDetail string
		wantLevel  logrus.Level
	}{
		{"validation", NewValidationError("RAM must be a whole number"), "Invalid input", "RAM must be a whole number", logrus.WarnLevel},
		{"busy", NewBusyError(), "Please wait", "another operation is still running on this panel", logrus.InfoLevel},
		{"expired", NewExpiredError(), "Panel expired", "Open a new panel to keep managing your applications.", logrus.InfoLevel},
		{"forbidden", NewForbiddenError("Only the owner can use this panel."), "Not allowed", "Only the owner can use this panel.", logrus.WarnLevel},
		{"remote passes provider text through", WrapRemoteFailure(errors.New("App not found"), "Start"), "Start failed", "App not found", logrus.ErrorLevel},
		{"plain error", errors.New("kaboom"), "Something went wrong", "kaboom", logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := handler.Describe(tt.err, logrus.Fields{"session_id": "s-1"})
			assert.Equal(t, tt.wantTitle, d.Title)
			assert.Equal(t, tt.wantDetail, d.Detail)
			assert.Equal(t, tt.wantLevel, d.Level)
		})
	}
}
