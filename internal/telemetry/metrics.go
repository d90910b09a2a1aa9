package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"seekers/internal/evo"
	"seekers/internal/model"
)

const namespace = "seekers"

// Metrics registers its collectors on a private registry.
type Metrics struct {
	registry       *prometheus.Registry
	generations    prometheus.Counter
	fallbacks      prometheus.Counter
	meanFitness    prometheus.Gauge
	bestFitness    prometheus.Gauge
	matingPoolSize prometheus.Gauge
	epochDuration  prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Completed generations.",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_fallbacks_total",
			Help:      "Generations that fell back to uniform parent selection.",
		}),
		meanFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_fitness",
			Help:      "Mean distance to target of the last completed generation.",
		}),
		bestFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_fitness",
			Help:      "Smallest distance to target of the last completed generation.",
		}),
		matingPoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mating_pool_size",
			Help:      "Mating pool entries of the last completed generation.",
		}),
		epochDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall time to simulate and reproduce one generation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	m.registry.MustRegister(
		m.generations,
		m.fallbacks,
		m.meanFitness,
		m.bestFitness,
		m.matingPoolSize,
		m.epochDuration,
	)
	return m
}

// Observe records one completed generation. A nil receiver is a no-op.
func (m *Metrics) Observe(report model.GenerationReport, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generations.Inc()
	if report.Selection == evo.SelectionUniformFallback {
		m.fallbacks.Inc()
	}
	m.meanFitness.Set(report.MeanFitness)
	m.bestFitness.Set(report.BestFitness)
	m.matingPoolSize.Set(float64(report.MatingPoolSize))
	m.epochDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
