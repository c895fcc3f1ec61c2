package middleware

import (
	"net/http"
	"time"

	"github.com/nkiryanov/smarthome/internal/handlers/userctx"
)

type logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type logWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *logWriter) Write(p []byte) (int, error) {
	size, err := w.ResponseWriter.Write(p)
	w.size += size
	return size, err
}

func (w *logWriter) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.status = statusCode
}

// LoggerMiddleware writes access log line per request
// Has to be placed after Authenticate to see who made the request
func LoggerMiddleware(l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lw := &logWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(lw, r)

			username := ""
			if principal, ok := userctx.FromContext(r.Context()); ok {
				username = principal.Username
			}

			log := l.Info
			if lw.status >= http.StatusInternalServerError {
				log = l.Warn
			}
			log(
				"got HTTP request",
				"method", r.Method,
				"uri", r.RequestURI,
				"user", username,
				"duration", time.Since(start),
				"status", lw.status,
				"size", lw.size,
			)
		})
	}
}
