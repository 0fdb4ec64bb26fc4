// Package metrics defines the prometheus metrics exposed on /metrics, they
// are registered with the default registry when the package is imported.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/antonio-alexander/go-attendance/internal/data"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "attendance"

const (
	labelRoute  = "route"
	labelMethod = "method"
	labelCode   = "code"
	labelResult = "result"
	labelCount  = "count"
)

const resultSucceeded = "succeeded"

// HttpRequestsTotal counts requests by route template, method and status
// code.
var HttpRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of http requests handled.",
	},
	[]string{labelRoute, labelMethod, labelCode},
)

var HttpRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of http requests.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{labelRoute, labelMethod},
)

// ImportsTotal counts imports by result: succeeded or the failure reason.
var ImportsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "imports_total",
		Help:      "Total number of employee imports, by result.",
	},
	[]string{labelResult},
)

var ReportsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_total",
		Help:      "Total number of attendance reports generated.",
	},
)

// DashboardEmployees holds the counts of the most recently computed
// dashboard for today; count is one of total, present, late or absent.
var DashboardEmployees = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dashboard_employees",
		Help:      "Employee counts of the most recently computed dashboard for today.",
	},
	[]string{labelCount},
)

func ObserveRequest(route, method string, code int, elapsed time.Duration) {
	if code == 0 {
		code = http.StatusOK
	}
	HttpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	HttpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func ObserveImport(result *data.ImportResult) {
	if result.Succeeded() {
		ImportsTotal.WithLabelValues(resultSucceeded).Inc()
		return
	}
	ImportsTotal.WithLabelValues(string(result.Failure)).Inc()
}

func ObserveReport() {
	ReportsTotal.Inc()
}

// ObserveDashboard ignores dashboards whose reference date isn't the
// calendar day of now.
func ObserveDashboard(dashboard data.Dashboard, now time.Time) {
	if dashboard.ReferenceDate != now.Format(data.DateFormat) {
		return
	}
	DashboardEmployees.WithLabelValues("total").Set(float64(dashboard.Total))
	DashboardEmployees.WithLabelValues("present").Set(float64(dashboard.PresentToday))
	DashboardEmployees.WithLabelValues("late").Set(float64(dashboard.LateToday))
	DashboardEmployees.WithLabelValues("absent").Set(float64(dashboard.AbsentToday))
}
