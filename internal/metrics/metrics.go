// Package metrics counts document generations on a private Prometheus registry.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "legalhelp"

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Generations        map[string]map[string]float64 `json:"generations"`
	ComplianceFailures float64                       `json:"complianceFailures"`
	PersistFailures    map[string]float64            `json:"persistFailures"`
	DurationCount      uint64                        `json:"durationCount"`
	DurationSum        float64                       `json:"durationSumSeconds"`
}

// Total returns the number of generations with status across formats.
func (s Snapshot) Total(status string) float64 {
	var n float64
	for _, byStatus := range s.Generations {
		n += byStatus[status]
	}
	return n
}

type Collector struct {
	mu       sync.RWMutex
	registry *prometheus.Registry

	generations        *prometheus.CounterVec
	duration           *prometheus.HistogramVec
	complianceFailures prometheus.Counter
	persistFailures    *prometheus.CounterVec
}

func New() *Collector {
	c := &Collector{}
	c.init()
	return c
}

func (c *Collector) init() {
	c.registry = prometheus.NewRegistry()
	c.generations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total number of document generations",
		},
		[]string{"format", "status"},
	)
	c.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Duration of document generation in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"format"},
	)
	c.complianceFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "compliance_failures_total",
		Help:      "Total number of generations with compliance errors",
	})
	c.persistFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Total number of failed background writes",
		},
		[]string{"target"},
	)
	c.registry.MustRegister(c.generations, c.duration, c.complianceFailures, c.persistFailures)
}

// ObserveGeneration records one finished generation.
func (c *Collector) ObserveGeneration(format, status string, elapsed time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.generations.WithLabelValues(format, status).Inc()
	c.duration.WithLabelValues(format).Observe(elapsed.Seconds())
}

func (c *Collector) ComplianceFailure() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.complianceFailures.Inc()
}

func (c *Collector) PersistFailure(target string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.persistFailures.WithLabelValues(target).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.RLock()
		reg := c.registry
		c.mu.RUnlock()
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

func (c *Collector) Snapshot() (Snapshot, error) {
	c.mu.RLock()
	families, err := c.registry.Gather()
	c.mu.RUnlock()
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Generations:     map[string]map[string]float64{},
		PersistFailures: map[string]float64{},
	}
	for _, family := range families {
		switch family.GetName() {
		case namespace + "_generations_total":
			for _, m := range family.GetMetric() {
				labels := labelMap(m)
				byStatus, ok := snap.Generations[labels["format"]]
				if !ok {
					byStatus = map[string]float64{}
					snap.Generations[labels["format"]] = byStatus
				}
				byStatus[labels["status"]] += m.GetCounter().GetValue()
			}
		case namespace + "_generation_duration_seconds":
			for _, m := range family.GetMetric() {
				snap.DurationCount += m.GetHistogram().GetSampleCount()
				snap.DurationSum += m.GetHistogram().GetSampleSum()
			}
		case namespace + "_compliance_failures_total":
			for _, m := range family.GetMetric() {
				snap.ComplianceFailures += m.GetCounter().GetValue()
			}
		case namespace + "_persist_failures_total":
			for _, m := range family.GetMetric() {
				snap.PersistFailures[labelMap(m)["target"]] += m.GetCounter().GetValue()
			}
		}
	}
	return snap, nil
}

// Reset zeroes every metric by swapping in a fresh registry.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.init()
}

// Flush returns the current snapshot and resets the counters.
func (c *Collector) Flush() (Snapshot, error) {
	snap, err := c.Snapshot()
	if err != nil {
		return Snapshot{}, err
	}
	c.Reset()
	return snap, nil
}

func labelMap(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, pair := range m.GetLabel() {
		out[pair.GetName()] = pair.GetValue()
	}
	return out
}
