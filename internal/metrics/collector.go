// Package metrics exposes SeisGate operational metrics as Prometheus
// collectors with an optional HTTP scrape endpoint. When disabled through
// configuration, the collector is constructed with no registry and every
// record method becomes a no-op, so callers never need nil checks.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seisgate/seisgate/internal/config"
	"github.com/seisgate/seisgate/pkg/log"
)

// Collector aggregates metrics for every SeisGate subsystem
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	extractionCounter  *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	extractionElements prometheus.Histogram
	activeExtractions  prometheus.Gauge

	cacheHitCounter  *prometheus.CounterVec
	cacheMissCounter *prometheus.CounterVec
	cacheEntries     *prometheus.GaugeVec

	indexRequestCounter *prometheus.CounterVec
	fallbackCounter     prometheus.Counter

	probeDuration *prometheus.HistogramVec
	mountState    *prometheus.GaugeVec
	circuitOpens  *prometheus.CounterVec

	server *http.Server
}

// NewCollector creates a metrics collector. A disabled config yields an
// inert collector whose methods do nothing.
func NewCollector(cfg *config.MetricsConfig) (*Collector, error) {
	if cfg == nil {
		defaults := config.NewDefault().Metrics
		cfg = &defaults
	}

	if !cfg.Enabled {
		return &Collector{config: cfg}, nil
	}

	c := &Collector{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}
	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return c, nil
}

func (c *Collector) initMetrics() error {
	ns := c.config.Namespace

	c.extractionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "extractions_total",
		Help:      "Total slice extractions by axis and outcome",
	}, []string{"axis", "status"})

	c.extractionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "extraction_duration_seconds",
		Help:      "End-to-end extraction latency by axis",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"axis"})

	c.extractionElements = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "extraction_elements",
		Help:      "Element count of extracted slices",
		Buckets:   prometheus.ExponentialBuckets(100, 4, 10),
	})

	c.activeExtractions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "active_extractions",
		Help:      "Native extraction calls currently in flight",
	})

	c.cacheHitCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "cache_hits_total",
		Help:      "Cache hits by tier",
	}, []string{"tier"})

	c.cacheMissCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "cache_misses_total",
		Help:      "Cache misses by tier",
	}, []string{"tier"})

	c.cacheEntries = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "cache_entries",
		Help:      "Live entries per cache tier",
	}, []string{"tier"})

	c.indexRequestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "index_requests_total",
		Help:      "Metadata index requests by operation and outcome",
	}, []string{"operation", "status"})

	c.fallbackCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "scanner_fallbacks_total",
		Help:      "Metadata requests served by the fallback scanner",
	})

	c.probeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "mount_probe_duration_seconds",
		Help:      "Mount health probe latency per storage root",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"root"})

	c.mountState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "mount_state",
		Help:      "Mount state per root (0=healthy, 1=slow, 2=stale)",
	}, []string{"root"})

	c.circuitOpens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "circuit_opens_total",
		Help:      "Circuit breaker open transitions per storage root",
	}, []string{"root"})

	collectors := []prometheus.Collector{
		c.extractionCounter,
		c.extractionDuration,
		c.extractionElements,
		c.activeExtractions,
		c.cacheHitCounter,
		c.cacheMissCounter,
		c.cacheEntries,
		c.indexRequestCounter,
		c.fallbackCounter,
		c.probeDuration,
		c.mountState,
		c.circuitOpens,
	}
	for _, col := range collectors {
		if err := c.registry.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// Start serves the Prometheus scrape endpoint. No-op when disabled.
func (c *Collector) Start(ctx context.Context) error {
	if c.registry == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	c.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", c.config.Port),
		Handler: mux,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger := log.WithComponent("metrics")
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return nil
}

// Stop shuts down the metrics endpoint.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

// Handler returns the scrape handler for embedding in another mux. Returns
// nil when metrics are disabled.
func (c *Collector) Handler() http.Handler {
	if c.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordExtraction records one completed extraction attempt.
func (c *Collector) RecordExtraction(axis string, status string, duration time.Duration) {
	if c.registry == nil {
		return
	}
	c.extractionCounter.WithLabelValues(axis, status).Inc()
	c.extractionDuration.WithLabelValues(axis).Observe(duration.Seconds())
}

// RecordExtractionSize records the element count of a successful extraction.
func (c *Collector) RecordExtractionSize(elements int) {
	if c.registry == nil {
		return
	}
	c.extractionElements.Observe(float64(elements))
}

// ExtractionStarted marks a native call entering the worker pool.
func (c *Collector) ExtractionStarted() {
	if c.registry == nil {
		return
	}
	c.activeExtractions.Inc()
}

// ExtractionFinished marks a native call leaving the worker pool.
func (c *Collector) ExtractionFinished() {
	if c.registry == nil {
		return
	}
	c.activeExtractions.Dec()
}

// RecordCacheHit records a hit on the named cache tier.
func (c *Collector) RecordCacheHit(tier string) {
	if c.registry == nil {
		return
	}
	c.cacheHitCounter.WithLabelValues(tier).Inc()
}

// RecordCacheMiss records a miss on the named cache tier.
func (c *Collector) RecordCacheMiss(tier string) {
	if c.registry == nil {
		return
	}
	c.cacheMissCounter.WithLabelValues(tier).Inc()
}

// UpdateCacheEntries sets the live entry count for a cache tier.
func (c *Collector) UpdateCacheEntries(tier string, entries int) {
	if c.registry == nil {
		return
	}
	c.cacheEntries.WithLabelValues(tier).Set(float64(entries))
}

// RecordIndexRequest records one metadata index request outcome.
func (c *Collector) RecordIndexRequest(operation string, success bool) {
	if c.registry == nil {
		return
	}
	status := "ok"
	if !success {
		status = "error"
	}
	c.indexRequestCounter.WithLabelValues(operation, status).Inc()
}

// RecordFallback records a metadata request served by the scanner.
func (c *Collector) RecordFallback() {
	if c.registry == nil {
		return
	}
	c.fallbackCounter.Inc()
}

// RecordProbe records one mount health probe observation.
func (c *Collector) RecordProbe(root string, state string, duration time.Duration) {
	if c.registry == nil {
		return
	}
	c.probeDuration.WithLabelValues(root).Observe(duration.Seconds())

	var v float64
	switch state {
	case "slow":
		v = 1
	case "stale":
		v = 2
	}
	c.mountState.WithLabelValues(root).Set(v)
}

// RecordCircuitOpen records a circuit breaker opening for a storage root.
func (c *Collector) RecordCircuitOpen(root string) {
	if c.registry == nil {
		return
	}
	c.circuitOpens.WithLabelValues(root).Inc()
}

// Registry exposes the underlying registry for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
