package metrics_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequest(t *testing.T) {
	counter := metrics.HttpRequestsTotal.WithLabelValues("/api/employees", http.MethodGet, "404")
	before := testutil.ToFloat64(counter)
	metrics.ObserveRequest("/api/employees", http.MethodGet, http.StatusNotFound, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))

	counter = metrics.HttpRequestsTotal.WithLabelValues("/version", http.MethodGet, "200")
	before = testutil.ToFloat64(counter)
	metrics.ObserveRequest("/version", http.MethodGet, 0, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestObserveImport(t *testing.T) {
	succeeded := metrics.ImportsTotal.WithLabelValues("succeeded")
	failed := metrics.ImportsTotal.WithLabelValues(string(data.ImportFailureFetchFailed))
	beforeSucceeded, beforeFailed := testutil.ToFloat64(succeeded), testutil.ToFloat64(failed)

	metrics.ObserveImport(&data.ImportResult{Employee: &data.Employee{Id: 1}})
	metrics.ObserveImport(data.ImportFailed(data.ImportFailureFetchFailed, errors.New("timeout")))
	metrics.ObserveImport(data.ImportFailed(data.ImportFailureFetchFailed, errors.New("timeout")))
	assert.Equal(t, beforeSucceeded+1, testutil.ToFloat64(succeeded))
	assert.Equal(t, beforeFailed+2, testutil.ToFloat64(failed))
}

func TestObserveDashboard(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	metrics.ObserveDashboard(data.Dashboard{Total: 3, PresentToday: 1, LateToday: 1, AbsentToday: 2,
		ReferenceDate: "2026-10-18"}, now)
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.DashboardEmployees.WithLabelValues("total")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.DashboardEmployees.WithLabelValues("present")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.DashboardEmployees.WithLabelValues("late")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.DashboardEmployees.WithLabelValues("absent")))

	// a dashboard for another day leaves the gauges alone
	metrics.ObserveDashboard(data.Dashboard{Total: 9, PresentToday: 9, ReferenceDate: "2019-01-01"}, now)
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.DashboardEmployees.WithLabelValues("total")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.DashboardEmployees.WithLabelValues("present")))

	before := testutil.ToFloat64(metrics.ReportsTotal)
	metrics.ObserveReport()
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ReportsTotal))
}
