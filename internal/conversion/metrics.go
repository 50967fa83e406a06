package conversion

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for conversions.
type Metrics struct {
	Conversions *prometheus.CounterVec
}

// NewMetrics registers the conversion metrics once per process.
//
//   - digipin_conversions_total{kind,result} - conversions by direction and outcome
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			Conversions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "digipin_conversions_total",
					Help: "Conversions by kind and result",
				},
				[]string{"kind", "result"},
			),
		}
	})
	return globalMetrics
}

// resultLabel maps an error to a low-cardinality label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrProviderFailure):
		return "provider_failure"
	case errors.Is(err, ErrStorage):
		return "storage_failure"
	default:
		return "error"
	}
}
