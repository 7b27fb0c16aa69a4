package serial

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects exchange statistics. A nil *Metrics records nothing.
type Metrics struct {
	exchanges    *prometheus.CounterVec
	attempts     prometheus.Histogram
	duration     prometheus.Histogram
	openFailures *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is useful for tests.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		exchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "serialx",
				Subsystem: "exchange",
				Name:      "total",
				Help:      "Exchanges by outcome.",
			},
			[]string{"outcome"},
		),
		attempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "serialx",
				Subsystem: "exchange",
				Name:      "attempts",
				Help:      "Read attempts made per exchange.",
				Buckets:   []float64{1, 2, 3, 5, 8, 10, 15, 20, 50},
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "serialx",
				Subsystem: "exchange",
				Name:      "duration_seconds",
				Help:      "Exchange duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		openFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "serialx",
				Subsystem: "open",
				Name:      "failures_total",
				Help:      "Failed opens by reason.",
			},
			[]string{"reason"},
		),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.exchanges, m.attempts, m.duration, m.openFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeExchange(resp *Response) {
	if m == nil || resp == nil {
		return
	}
	m.exchanges.WithLabelValues(resp.Outcome.String()).Inc()
	m.attempts.Observe(float64(resp.Attempts))
	m.duration.Observe(resp.Elapsed.Seconds())
}

// ObserveOpenFailure counts a failed Open by its sentinel reason.
func (m *Metrics) ObserveOpenFailure(err error) {
	if m == nil || err == nil {
		return
	}
	m.openFailures.WithLabelValues(openFailureReason(err)).Inc()
}

func openFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrDeviceNotFound):
		return "not_found"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrDeviceInUse):
		return "in_use"
	case errors.Is(err, ErrInvalidBaudRate):
		return "invalid_baud_rate"
	case errors.Is(err, ErrUnknownPort):
		return "unknown_scheme"
	default:
		return "invalid_config"
	}
}
