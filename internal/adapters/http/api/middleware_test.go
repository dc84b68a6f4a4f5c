package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given handlers wrapped with metrics", t, func() {
		Convey("Then the written status should pass through", func() {
			h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			}), "test")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			So(rec.Code, ShouldEqual, http.StatusTeapot)
		})

		Convey("Then hijacking an unhijackable writer should fail", func() {
			var hijackErr error
			h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _, hijackErr = w.(http.Hijacker).Hijack()
			}), "ws")
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ws", nil))
			So(hijackErr, ShouldEqual, errHijackUnsupported)
		})
	})

	Convey("Status codes should fold into classes", t, func() {
		So(statusClass(http.StatusOK), ShouldEqual, "2xx")
		So(statusClass(http.StatusSwitchingProtocols), ShouldEqual, "1xx")
		So(statusClass(http.StatusNotFound), ShouldEqual, "4xx")
		So(statusClass(http.StatusInternalServerError), ShouldEqual, "5xx")
		So(statusClass(0), ShouldEqual, "other")
	})

	Convey("Error kinds should follow the endpoint", t, func() {
		So(errorKind("competition", http.StatusNotFound), ShouldEqual, "unknown_competition")
		So(errorKind("leaderboard", http.StatusNotFound), ShouldEqual, "not_found")
		So(errorKind("ws", http.StatusBadRequest), ShouldEqual, "upgrade_failed")
		So(errorKind("leaderboard", http.StatusBadRequest), ShouldEqual, "bad_request")
		So(errorKind("leaderboard", http.StatusInternalServerError), ShouldEqual, "server_error")
		So(errorKind("leaderboard", http.StatusConflict), ShouldEqual, "client_error")
	})
}
