package http

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/digipin/internal/logging"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/digipin/internal/http"

// Metric names.
const (
	metricRequests = "digipin.http.requests_total"
	metricDuration = "digipin.http.request_duration_seconds"
	metricInFlight = "digipin.http.in_flight_requests"
)

// requestMetrics records per-route request counts, latency and concurrency.
type requestMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

// newRequestMetrics creates the instruments on mp, or on the global meter
// provider when mp is nil. Instruments that fail to register are skipped.
func newRequestMetrics(mp metric.MeterProvider, logger *logging.Logger) *requestMetrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(httpInstrumentationName)

	var m requestMetrics
	var errs []error
	var err error

	m.requests, err = meter.Int64Counter(metricRequests,
		metric.WithDescription("HTTP requests by route, method and status class."),
		metric.WithUnit("{request}"),
	)
	errs = append(errs, err)

	// Conversions are CPU-only, so the buckets stay in the sub-second range.
	m.duration, err = meter.Float64Histogram(metricDuration,
		metric.WithDescription("HTTP request latency by route, method and status class."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1),
	)
	errs = append(errs, err)

	m.inFlight, err = meter.Int64UpDownCounter(metricInFlight,
		metric.WithDescription("HTTP requests currently being served."),
		metric.WithUnit("{request}"),
	)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		if logger == nil {
			logger = logging.NewNop()
		}
		logger.Warn(context.Background(), "some http instruments are unavailable", zap.Error(err))
	}
	return &m
}

// middleware records metrics for every request. Handler errors must already
// be written to the response by an inner middleware (Server.contextMiddleware)
// so the recorded status is the final one.
func (m *requestMetrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()

			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1)
				defer m.inFlight.Add(ctx, -1)
			}

			err := next(c)

			set := metric.WithAttributes(
				attribute.String("route", routeLabel(c.Path())),
				attribute.String("method", c.Request().Method),
				attribute.String("status_class", statusClass(c.Response().Status)),
				attribute.Bool("conversion", isConversionRoute(c.Path())),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, set)
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), set)
			}
			return err
		}
	}
}

// routeLabel maps the matched route to a metric label. Unmatched requests
// share one label so requests for random paths cannot grow the series count.
func routeLabel(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}

func isConversionRoute(path string) bool {
	switch strings.TrimPrefix(path, "/api/v1") {
	case "/encode", "/decode", "/selection":
		return true
	}
	return false
}
