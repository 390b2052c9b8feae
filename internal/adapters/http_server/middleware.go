package httpserver

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"poi_ingest/internal/adapters/observability"
)

const timeoutBody = `{"type":"about:blank","title":"Request timed out","status":503}`

// Timeout cuts handlers off after d and answers 503 as a problem document.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		th := http.TimeoutHandler(next, d, timeoutBody)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			th.ServeHTTP(problemOnTimeout{w}, r)
		})
	}
}

// problemOnTimeout labels the bare 503 that http.TimeoutHandler writes.
type problemOnTimeout struct{ http.ResponseWriter }

func (w problemOnTimeout) WriteHeader(code int) {
	if code == http.StatusServiceUnavailable && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/problem+json")
	}
	w.ResponseWriter.WriteHeader(code)
}

// Observe records one metric sample and one access log line per request.
// It sits outside Recoverer and Timeout so panics and timeouts are counted.
func Observe(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				dur := time.Since(start)
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				route := routeOf(r)
				observability.ObserveHTTP(route, r.Method, status, dur)

				ev := l.Info()
				switch {
				case status >= 500:
					ev = l.Error()
				case status >= 400:
					ev = l.Warn()
				}
				ev.Str("req_id", chimw.GetReqID(r.Context())).
					Str("route", route).
					Str("method", r.Method).
					Int("status", status).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", dur).
					Str("remote", clientHost(r.RemoteAddr)).
					Msg("http_request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// routeOf prefers the matched chi pattern so ids don't explode label sets.
func routeOf(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// clientHost drops the port; RealIP has already applied forwarding headers.
func clientHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}
