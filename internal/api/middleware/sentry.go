package middleware

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/cloo-solutions/ragkit/internal/telemetry"
)

// Tracing opens a Sentry transaction per request on a cloned hub, so
// pipeline spans started by handlers become its children. Panics are
// reported and re-raised. 5xx responses are captured as errors.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}

		ctx := sentry.SetHubOnContext(r.Context(), hub)
		ctx, span := telemetry.StartRequest(ctx, r)
		defer span.End()
		r = r.WithContext(ctx)

		hub.Scope().SetContext("request", map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"remote_addr": r.RemoteAddr,
		})
		if requestID := GetRequestID(ctx); requestID != "" {
			hub.Scope().SetTag("request_id", requestID)
			span.SetTag("request_id", requestID)
		}

		defer func() {
			if err := recover(); err != nil {
				span.SetStatus(sentry.SpanStatusInternalError)
				hub.RecoverWithContext(ctx, err)
				panic(err)
			}
		}()

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		span.SetStatus(telemetry.SpanStatusForHTTP(status))
		span.SetData("http.response.status_code", status)

		if status >= http.StatusInternalServerError {
			telemetry.CaptureError(ctx, fmt.Errorf("%s %s: HTTP %d %s", r.Method, r.URL.Path, status, http.StatusText(status)))
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
