package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the API collectors.
type Metrics struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	imports    *prometheus.CounterVec
	importRows *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kaushal",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kaushal",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		imports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kaushal",
			Subsystem: "import",
			Name:      "files_total",
			Help:      "CSV imports by screen and outcome.",
		}, []string{"screen", "outcome"}),
		importRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kaushal",
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Imported CSV records by screen and result (updated, appended, skipped).",
		}, []string{"screen", "result"}),
	}
}

// Middleware records the count and latency of every request.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			if err := next(ctx); err != nil {
				ctx.Error(err)
			}
			route := ctx.Path()
			method := ctx.Request().Method
			m.requests.WithLabelValues(method, route, strconv.Itoa(ctx.Response().Status)).Inc()
			m.latency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

func (m *Metrics) observeImport(screen, outcome string, updated, appended, skipped int) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(screen, outcome).Inc()
	m.importRows.WithLabelValues(screen, "updated").Add(float64(updated))
	m.importRows.WithLabelValues(screen, "appended").Add(float64(appended))
	m.importRows.WithLabelValues(screen, "skipped").Add(float64(skipped))
}
