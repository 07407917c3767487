package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/seisgate/seisgate/internal/config"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	t.Run("with valid config", func(t *testing.T) {
		cfg := &config.MetricsConfig{
			Enabled:   true,
			Port:      9090,
			Path:      "/metrics",
			Namespace: "seisgate",
		}
		collector, err := NewCollector(cfg)
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector.registry == nil {
			t.Error("collector.registry is nil")
		}
	})

	t.Run("with nil config uses defaults", func(t *testing.T) {
		collector, err := NewCollector(nil)
		if err != nil {
			t.Fatalf("NewCollector(nil) error = %v, want nil", err)
		}
		if collector.config.Port != 8080 {
			t.Errorf("default port = %d, want 8080", collector.config.Port)
		}
		if collector.config.Namespace != "seisgate" {
			t.Errorf("default namespace = %q", collector.config.Namespace)
		}
	})

	t.Run("disabled config is inert", func(t *testing.T) {
		collector, err := NewCollector(&config.MetricsConfig{Enabled: false})
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector.registry != nil {
			t.Error("disabled collector must not build a registry")
		}
		// Must not panic.
		collector.RecordExtraction("inline", "ok", time.Millisecond)
		collector.RecordCacheHit("search")
		collector.RecordFallback()
		if collector.Handler() != nil {
			t.Error("disabled collector must return nil handler")
		}
	})
}

func TestRecordExtraction(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(&config.MetricsConfig{
		Enabled:   true,
		Namespace: "seisgate",
	})
	if err != nil {
		t.Fatal(err)
	}

	collector.RecordExtraction("inline", "ok", 50*time.Millisecond)
	collector.RecordExtraction("inline", "ok", 70*time.Millisecond)
	collector.RecordExtraction("crossline", "error", 10*time.Millisecond)

	got := testutil.ToFloat64(collector.extractionCounter.WithLabelValues("inline", "ok"))
	if got != 2 {
		t.Errorf("inline ok extractions = %v, want 2", got)
	}
	got = testutil.ToFloat64(collector.extractionCounter.WithLabelValues("crossline", "error"))
	if got != 1 {
		t.Errorf("crossline error extractions = %v, want 1", got)
	}
}

func TestCacheCounters(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(&config.MetricsConfig{
		Enabled:   true,
		Namespace: "seisgate",
	})
	if err != nil {
		t.Fatal(err)
	}

	collector.RecordCacheHit("search")
	collector.RecordCacheHit("search")
	collector.RecordCacheMiss("facets")
	collector.UpdateCacheEntries("search", 17)

	if got := testutil.ToFloat64(collector.cacheHitCounter.WithLabelValues("search")); got != 2 {
		t.Errorf("search hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.cacheMissCounter.WithLabelValues("facets")); got != 1 {
		t.Errorf("facets misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.cacheEntries.WithLabelValues("search")); got != 17 {
		t.Errorf("search entries = %v, want 17", got)
	}
}

func TestRecordProbeMountState(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(&config.MetricsConfig{
		Enabled:   true,
		Namespace: "seisgate",
	})
	if err != nil {
		t.Fatal(err)
	}

	collector.RecordProbe("/mnt/seismic", "healthy", 5*time.Millisecond)
	if got := testutil.ToFloat64(collector.mountState.WithLabelValues("/mnt/seismic")); got != 0 {
		t.Errorf("healthy state gauge = %v, want 0", got)
	}

	collector.RecordProbe("/mnt/seismic", "stale", 2*time.Second)
	if got := testutil.ToFloat64(collector.mountState.WithLabelValues("/mnt/seismic")); got != 2 {
		t.Errorf("stale state gauge = %v, want 2", got)
	}
}
