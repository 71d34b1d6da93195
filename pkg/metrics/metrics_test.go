package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a dedicated registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should register its collectors on that registry", func() {
				So(manager, ShouldNotBeNil)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithPrometheusRegistry(registry),
			)
			manager.trialsProcessed.Inc()

			Convey("Then metric names should carry the namespace and subsystem", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_namespace_test_subsystem_trials_processed_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording simulation metrics", func() {
			before := testutil.ToFloat64(globalManager.trialsProcessed)
			RecordTrialProcessed()
			RecordTrialProcessed()
			RecordTrialLatency(1.5)
			RecordSimulationRun(120)

			Convey("Then the trial counter should advance", func() {
				So(testutil.ToFloat64(globalManager.trialsProcessed), ShouldEqual, before+2)
			})
		})

		Convey("When recording model gauges", func() {
			UpdateRosterSize(5)
			UpdateProfitAllocationTotal(0.96)

			Convey("Then the gauges should hold the last value", func() {
				So(testutil.ToFloat64(globalManager.rosterSize), ShouldEqual, 5)
				So(testutil.ToFloat64(globalManager.profitAllocationTotal), ShouldEqual, 0.96)
			})
		})

		Convey("When recording ingestion and cache metrics", func() {
			before := testutil.ToFloat64(globalManager.reportRowsIngested)
			RecordReportImport(36, 12)
			RecordCacheHit()
			RecordCacheMiss()

			Convey("Then observations should be added", func() {
				So(testutil.ToFloat64(globalManager.reportRowsIngested), ShouldEqual, before+36)
			})
		})

		Convey("When recording queue, worker, HTTP and error metrics", func() {
			So(func() {
				UpdateQueueSize(10)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerActiveCount(4)
				UpdateWorkerMessagesPerSecond(250)
				RecordWorkerError()
				RecordTrialError()
				RecordHTTPRequest("allocations", "GET", "200")
				RecordHTTPRequestDuration("allocations", "GET", "200", 3)
				RecordErrorByComponent("queue", "closed")
				RecordErrorByEndpoint("simulations", "POST", "client_error")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)
		})
	})
}

func TestWriteTextfile(t *testing.T) {
	Convey("Given a metrics textfile destination", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "profitshare.prom")
		RecordTrialProcessed()

		Convey("When writing the registry", func() {
			err := WriteTextfile(path)

			Convey("Then the file should contain the exposition text", func() {
				So(err, ShouldBeNil)
				data, readErr := os.ReadFile(path)
				So(readErr, ShouldBeNil)
				So(strings.Contains(string(data), "profitshare_trials_processed_total"), ShouldBeTrue)
			})
		})

		Convey("When the destination directory does not exist", func() {
			err := WriteTextfile(filepath.Join(dir, "missing", "out.prom"))

			Convey("Then a write error should be returned", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
