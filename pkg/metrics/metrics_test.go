package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "clickrank")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_ns"),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager.namespace, ShouldEqual, "test_ns")
				So(manager.subsystem, ShouldEqual, "service")
			})

			Convey("And metric names should carry the namespace", func() {
				manager.visitorIncrements.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if strings.HasPrefix(f.GetName(), "test_ns_service_") {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty options are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "clickrank")
				So(manager.subsystem, ShouldEqual, "service")
				So(len(manager.histogramBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording business metrics", func() {
			before := testutil.ToFloat64(globalManager.visitorIncrements)
			RecordVisitorIncrement()
			RecordVisitorIncrement()

			Convey("Then the counter should advance", func() {
				So(testutil.ToFloat64(globalManager.visitorIncrements), ShouldEqual, before+2)
			})
		})

		Convey("When recording labelled metrics", func() {
			So(func() {
				RecordAdminAction("set-count")
				RecordForbidden("banned")
				RecordIdentityMinted()
				UpdateLeaderboardSize(12)
				UpdateGlobalCount(99)
				RecordStoreLatency("incr", 1.5)
				RecordStoreError("incr")
				RecordStoreConnect()
				RecordHTTPRequest("increment", "POST", "200")
				RecordHTTPRequestDuration("increment", "POST", "200", 3)
				RecordErrorByEndpoint("increment", "POST", "forbidden")
				RecordErrorByType("forbidden", "medium")
				UpdateStreamSubscribers(3)
				UpdateStreamQueueSize(1)
				RecordStreamDropped()
				RecordStreamDelivered()
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(10)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)

			Convey("Then gauges should hold the last value", func() {
				So(testutil.ToFloat64(globalManager.globalCount), ShouldEqual, 99)
				So(testutil.ToFloat64(globalManager.leaderboardSize), ShouldEqual, 12)
				So(testutil.ToFloat64(globalManager.forbidden.WithLabelValues("banned")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When reading the registry", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
