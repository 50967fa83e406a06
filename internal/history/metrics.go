package history

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the history store.
type Metrics struct {
	Items      prometheus.Gauge
	Operations *prometheus.CounterVec
}

// NewMetrics registers the history metrics once per process.
//
//   - digipin_history_items - items currently retained
//   - digipin_history_operations_total{op,result} - store operations
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			Items: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "digipin_history_items",
				Help: "Number of conversions currently retained in history",
			}),
			Operations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "digipin_history_operations_total",
					Help: "History store operations by type and result",
				},
				[]string{"op", "result"},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) observe(op string, err error, size int) {
	result := "ok"
	if err != nil {
		result = "error"
	} else {
		m.Items.Set(float64(size))
	}
	m.Operations.WithLabelValues(op, result).Inc()
}
