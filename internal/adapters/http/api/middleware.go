package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/standings/pkg/metrics"
)

var errHijackUnsupported = errors.New("response writer does not support hijacking")

// MetricsMiddleware records request count, latency and error class for
// endpoint. Status codes are folded into classes ("2xx", "4xx") so the
// label set stays bounded.
func MetricsMiddleware(next http.Handler, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		class := statusClass(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, class)
		// Upgraded connections outlive the handler; their latency is meaningless.
		if !rec.hijacked {
			metrics.RecordHTTPRequestDuration(endpoint, r.Method, class, float64(time.Since(start).Milliseconds()))
		}
		if rec.status >= http.StatusBadRequest {
			metrics.RecordErrorByEndpoint(endpoint, r.Method, errorKind(endpoint, rec.status))
		}
	}
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}

// errorKind names the failure the way clients see it in error bodies.
func errorKind(endpoint string, status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status == http.StatusNotFound && endpoint == "competition":
		return "unknown_competition"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusBadRequest && endpoint == "ws":
		return "upgrade_failed"
	case status == http.StatusBadRequest:
		return "bad_request"
	default:
		return "client_error"
	}
}

// statusRecorder captures the status written by the wrapped handler and
// lets the websocket upgrade take over the connection.
type statusRecorder struct {
	http.ResponseWriter
	status   int
	hijacked bool
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errHijackUnsupported
	}
	conn, rw, err := h.Hijack()
	if err == nil {
		s.hijacked = true
		s.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
