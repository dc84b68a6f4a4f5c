package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then collectors should be registered", func() {
				So(manager, ShouldNotBeNil)
				manager.pollCycles.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When creating with custom naming options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithMetricPrefix("x"),
				WithHistogramBuckets([]float64{1, 2, 3}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.pollCycles.Inc()

			Convey("Then metric names should carry namespace, subsystem and prefix", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_x_poll_cycles_total")
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording a change event", func() {
			before := testutil.ToFloat64(globalManager.changesTotal.WithLabelValues("titanic", "new_entry"))
			RecordChange("titanic", "new_entry")
			after := testutil.ToFloat64(globalManager.changesTotal.WithLabelValues("titanic", "new_entry"))

			Convey("Then the counter should increase by one", func() {
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When setting gauges", func() {
			UpdateSnapshotRows("titanic", 42)
			UpdateCachedCompetitions(3)
			SetPollerRunning(true)

			Convey("Then the gauges should hold the values", func() {
				So(testutil.ToFloat64(globalManager.snapshotRows.WithLabelValues("titanic")), ShouldEqual, 42)
				So(testutil.ToFloat64(globalManager.cachedEntries), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.pollerRunning), ShouldEqual, 1)
				SetPollerRunning(false)
				So(testutil.ToFloat64(globalManager.pollerRunning), ShouldEqual, 0)
			})
		})

		Convey("When recording the remaining series", func() {
			Convey("Then none of the recorders should panic", func() {
				So(func() {
					RecordFetch("titanic", "kaggle", "ok", 12)
					RecordListenerError("log")
					UpdateListenersRegistered(2)
					RecordPublishError("redis")
					RecordPollCycle(100)
					RecordAggregation(3, 10)
					RecordAggregationFailure("titanic")
					RecordHTTPRequest("leaderboard", "GET", "200")
					RecordHTTPRequestDuration("leaderboard", "GET", "200", 1.5)
					RecordErrorByEndpoint("leaderboard", "GET", "client_error")
					UpdateWebsocketClients(1)
					RecordWebsocketMessage()
					UpdateSystemMemoryUsage(1024)
					UpdateSystemGoroutineCount(8)
					RecordSystemGCPauseTime(0.2)
				}, ShouldNotPanic)
				So(GetRegistry(), ShouldNotBeNil)
			})
		})
	})
}
