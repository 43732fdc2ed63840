package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a custom registry and options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithLatencyBuckets([]float64{1, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.scans.WithLabelValues("ok").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				So(families[0].GetName(), ShouldStartWith, "test_")
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When recording scans", func() {
			before := testutil.ToFloat64(globalManager.scans.WithLabelValues("PARSE_ERROR"))
			RecordScan("PARSE_ERROR")

			Convey("Then the outcome counter moves", func() {
				So(testutil.ToFloat64(globalManager.scans.WithLabelValues("PARSE_ERROR")), ShouldEqual, before+1)
			})
		})

		Convey("When recording the rest", func() {
			So(func() {
				RecordStageLatency("extract", 1234)
				RecordConfidence(0.85)
				RecordWarnings(2)
				RecordPreparedImage(512<<10, true)
				RecordRateLimited()
				RecordHTTPRequest("/healthz", http.MethodGet, "200", 0.4)
			}, ShouldNotPanic)
		})

		Convey("When scraping the handler", func() {
			RecordScan("ok")
			rec := httptest.NewRecorder()
			Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then the scan counter is exposed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(strings.Contains(rec.Body.String(), "wingspan_scores_scans_total"), ShouldBeTrue)
			})
		})
	})
}
