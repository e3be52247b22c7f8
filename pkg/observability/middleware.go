package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/platinummonkey/campus/pkg/contextkeys"
)

// accessFields collects values learned by inner middleware, such as the
// authenticated user, for the outer access log line
type accessFields struct {
	mu     sync.Mutex
	userID string
}

// SetUserID records the authenticated user on the request's access log line
func SetUserID(ctx context.Context, userID string) {
	if f, ok := ctx.Value(contextkeys.AccessLogKey).(*accessFields); ok {
		f.mu.Lock()
		f.userID = userID
		f.mu.Unlock()
	}
}

// LoggingMiddleware attaches logger to the request context and writes one
// line per request once the response is done
func LoggingMiddleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			fields := &accessFields{}
			ctx := WithLogger(r.Context(), logger)
			ctx = context.WithValue(ctx, contextkeys.AccessLogKey, fields)
			r = r.WithContext(ctx)

			rw := newStatusRecorder(w)
			next.ServeHTTP(rw, r)

			entry := FromContext(ctx).WithFields(map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rw.statusCode,
				"bytes":       rw.bytesWritten,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_addr": r.RemoteAddr,
			})
			fields.mu.Lock()
			if fields.userID != "" {
				entry = entry.WithField("user_id", fields.userID)
			}
			fields.mu.Unlock()

			switch {
			case rw.statusCode >= 500:
				entry.Error("request failed")
			case rw.statusCode >= 400:
				entry.Warn("request rejected")
			default:
				entry.Info("request completed")
			}
		})
	}
}
