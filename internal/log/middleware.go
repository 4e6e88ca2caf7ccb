package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type ContextKey string

const LoggerContextKey ContextKey = "logger"

// NewContext returns ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts the request logger, falling back to the slog default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware puts logger in the request context and logs one line per request.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(NewContext(r.Context(), logger)))

			level := slog.LevelInfo
			if rec.status >= 500 {
				level = slog.LevelError
			} else if rec.status >= 400 {
				level = slog.LevelWarn
			}
			fields := NewFields().
				WithComponent(ComponentHTTP).
				WithHTTPRequest(r.Method, r.URL.Path).
				WithHTTPResponse(rec.status, time.Since(start).Milliseconds())
			if id := rec.Header().Get("X-Request-ID"); id != "" {
				fields[FieldRequestID] = id
			}
			logger.Logger.Log(r.Context(), level, "HTTP request completed", fields.ToSlice()...)
		})
	}
}
