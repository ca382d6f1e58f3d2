package logger

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	LoggerKey        contextKey = "logger"
	RequestIDKey     contextKey = "request_id"
	SessionIDKey     contextKey = "session_id"
	InteractionIDKey contextKey = "interaction_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, decorated with whatever
// session and interaction ids the context carries.
func FromContext(ctx context.Context) *logrus.Entry {
	entry, ok := ctx.Value(LoggerKey).(*logrus.Entry)
	if !ok {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}
	if id := GetSessionID(ctx); id != "" {
		entry = entry.WithField("session_id", id)
	}
	if id := GetInteractionID(ctx); id != "" {
		entry = entry.WithField("interaction_id", id)
	}
	return entry
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithSessionID tags the context with the dashboard it is acting on.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

func GetSessionID(ctx context.Context) string {
	id, _ := ctx.Value(SessionIDKey).(string)
	return id
}

// WithInteractionID tags the context with the chat interaction being served.
func WithInteractionID(ctx context.Context, interactionID string) context.Context {
	return context.WithValue(ctx, InteractionIDKey, interactionID)
}

func GetInteractionID(ctx context.Context) string {
	id, _ := ctx.Value(InteractionIDKey).(string)
	return id
}

// WithRequest creates a logger entry with request information.
func WithRequest(logger *logrus.Logger, r *http.Request) *logrus.Entry {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}

	return logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote_ip":  getRemoteIP(r),
		"user_agent": r.UserAgent(),
	})
}

// RequestLoggerMiddleware adds a request-scoped logger and request id to the
// context of every ops request.
func RequestLoggerMiddleware(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
				r.Header.Set("X-Request-ID", requestID)
			}
			w.Header().Set("X-Request-ID", requestID)

			entry := WithRequest(logger, r)
			ctx := WithLogger(r.Context(), entry)
			ctx = WithRequestID(ctx, requestID)

			entry.Debug("Request started")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getRemoteIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

// ResponseWriter wraps http.ResponseWriter to capture status code
type ResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.ResponseWriter.WriteHeader(code)
		rw.written = true
	}
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *ResponseWriter) StatusCode() int {
	return rw.statusCode
}
