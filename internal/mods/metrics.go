package mods

import (
	"errors"
	"time"

	"github.com/ehce/ehce/internal/attr"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects mod load and attribute evaluation metrics. A nil
// *Metrics records nothing.
type Metrics struct {
	loads      *prometheus.CounterVec
	duration   prometheus.Histogram
	items      *prometheus.GaugeVec
	attrErrors *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mod_loads_total",
			Help:      "Mod loads by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mod_load_duration_seconds",
			Help:      "Time spent resolving a mod.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		items: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mod_items",
			Help:      "Items of the active mod by kind.",
		}, []string{"kind"}),
		attrErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attribute_errors_total",
			Help:      "Attribute evaluation failures by kind.",
		}, []string{"kind"}),
	}
	for _, c := range []prometheus.Collector{m.loads, m.duration, m.items, m.attrErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeLoad(start time.Time, err error) {
	if m == nil {
		return
	}
	m.duration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.loads.WithLabelValues("error").Inc()
		return
	}
	m.loads.WithLabelValues("ok").Inc()
}

func (m *Metrics) setItems(counts map[string]int) {
	if m == nil {
		return
	}
	m.items.Reset()
	for kind, n := range counts {
		m.items.WithLabelValues(kind).Set(float64(n))
	}
}

// AttributeError counts a failed attribute evaluation. Nil errors are
// ignored.
func (m *Metrics) AttributeError(err error) {
	if m == nil || err == nil {
		return
	}
	m.attrErrors.WithLabelValues(AttributeErrorKind(err)).Inc()
}

// AttributeErrorKind classifies an error returned by the attribute graph.
func AttributeErrorKind(err error) string {
	var (
		cycle   *attr.CircularDependencyError
		unknown *attr.UnknownVariableError
		def     *attr.DefaultEvaluationError
		eval    *attr.EvaluationError
	)
	switch {
	case errors.As(err, &cycle):
		return "circular_dependency"
	case errors.As(err, &unknown):
		return "unknown_variable"
	case errors.As(err, &def):
		return "default"
	case errors.As(err, &eval):
		return "evaluation"
	default:
		return "other"
	}
}
