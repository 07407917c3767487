package health

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/seisgate/seisgate/internal/circuit"
	"github.com/seisgate/seisgate/pkg/errors"
	"github.com/seisgate/seisgate/pkg/log"
	"github.com/seisgate/seisgate/pkg/types"
)

// Monitor probes backing storage roots for responsiveness and drives one
// circuit breaker per root. It runs independently of the request path and
// never blocks longer than the probe timeout.
type Monitor struct {
	mu       sync.RWMutex
	config   *Config
	roots    []string
	breakers *circuit.Manager
	statuses map[string]types.MountStatus
	logger   zerolog.Logger

	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// OnProbe, when set, observes every probe result (used for metrics).
	OnProbe func(path string, state types.MountState, latency time.Duration)

	// OnCircuitOpen, when set, observes every circuit open transition.
	OnCircuitOpen func(path string)
}

// Config represents monitor configuration
type Config struct {
	ProbeTimeout     time.Duration `yaml:"probe_timeout"`
	ProbeInterval    time.Duration `yaml:"probe_interval"`
	SlowThreshold    time.Duration `yaml:"slow_threshold"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// NewMonitor creates a new mount health monitor for the given storage roots.
// Object-store roots (s3://) are not probed; the scanner surfaces their
// failures directly.
func NewMonitor(roots []string, config *Config) *Monitor {
	if config == nil {
		config = &Config{}
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 2 * time.Second
	}
	if config.ProbeInterval <= 0 {
		config.ProbeInterval = 15 * time.Second
	}
	if config.SlowThreshold <= 0 {
		config.SlowThreshold = 500 * time.Millisecond
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 3
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}

	logger := log.WithComponent("health")

	var probed []string
	for _, root := range roots {
		if strings.HasPrefix(root, "s3://") {
			continue
		}
		probed = append(probed, root)
	}

	m := &Monitor{
		config:   config,
		roots:    probed,
		statuses: make(map[string]types.MountStatus),
		logger:   logger,
		stopCh:   make(chan struct{}),
	}

	m.breakers = circuit.NewManager(circuit.Config{
		FailureThreshold: config.FailureThreshold,
		Cooldown:         config.Cooldown,
		OnStateChange: func(name string, from, to circuit.State) {
			logger.Warn().
				Str("path", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("mount circuit state changed")
			if to == circuit.StateOpen && m.OnCircuitOpen != nil {
				m.OnCircuitOpen(name)
			}
		},
	})

	return m
}

// Start launches the periodic probe loop
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("monitor already started")
	}
	m.started = true

	// Seed statuses so Gate has data before the first tick.
	for _, root := range m.roots {
		m.statuses[root] = types.MountStatus{
			Path:         root,
			State:        types.MountHealthy,
			CircuitState: circuit.StateClosed.String(),
		}
	}

	m.wg.Add(1)
	go m.probeLoop(ctx)

	return nil
}

// Stop stops the probe loop
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return fmt.Errorf("monitor not started")
	}
	close(m.stopCh)
	m.started = false
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

func (m *Monitor) probeLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.ProbeInterval)
	defer ticker.Stop()

	// Probe once immediately so the first gate decision is informed.
	m.probeAll()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeAll()
		}
	}
}

func (m *Monitor) probeAll() {
	for _, root := range m.roots {
		m.Check(root)
	}
}

// Check performs one on-demand probe of path through its circuit breaker and
// returns the resulting status. When the breaker is open the probe is skipped
// and the last known status is returned with the circuit state updated.
func (m *Monitor) Check(path string) types.MountStatus {
	breaker := m.breakers.GetBreaker(path)

	if err := breaker.Allow(); err != nil {
		status := m.lastStatus(path)
		status.CircuitState = breaker.GetState().String()
		m.setStatus(path, status)
		return status
	}

	state, latency, probeErr := m.probe(path)

	// Slow is non-fatal: only stale counts as a breaker failure.
	if state == types.MountStale {
		breaker.RecordResult(probeErr)
	} else {
		breaker.RecordResult(nil)
	}

	status := types.MountStatus{
		Path:                path,
		State:               state,
		Latency:             latency,
		ConsecutiveFailures: int(breaker.GetCounts().ConsecutiveFailures),
		CircuitState:        breaker.GetState().String(),
		LastCheck:           time.Now(),
	}
	if probeErr != nil {
		status.Error = probeErr.Error()
	}
	m.setStatus(path, status)

	if m.OnProbe != nil {
		m.OnProbe(path, state, latency)
	}

	if state != types.MountHealthy {
		m.logger.Warn().
			Str("path", path).
			Str("state", string(state)).
			Dur("latency", latency).
			Err(probeErr).
			Msg("mount probe degraded")
	}

	return status
}

// probe executes a bounded-time responsiveness check: the path must exist and
// a small directory read must complete within the probe timeout.
func (m *Monitor) probe(path string) (types.MountState, time.Duration, error) {
	type probeResult struct {
		err error
	}

	start := time.Now()
	resultCh := make(chan probeResult, 1)

	go func() {
		resultCh <- probeResult{err: probeFS(path)}
	}()

	select {
	case res := <-resultCh:
		latency := time.Since(start)
		if res.err != nil {
			return types.MountStale, latency, res.err
		}
		if latency > m.config.SlowThreshold {
			return types.MountSlow, latency, nil
		}
		return types.MountHealthy, latency, nil

	case <-time.After(m.config.ProbeTimeout):
		// The probe goroutine is abandoned; it will drain into the
		// buffered channel whenever the stuck I/O returns.
		return types.MountStale, m.config.ProbeTimeout,
			errors.Newf(errors.ErrCodeProbeTimeout, "probe of %s exceeded %v", path, m.config.ProbeTimeout)
	}
}

// probeFS is the actual blocking filesystem touch: existence plus a small read.
func probeFS(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}

	dir, err := os.Open(path)
	if err != nil {
		return err
	}
	defer dir.Close()

	// An empty directory is still a healthy mount.
	if _, err := dir.Readdirnames(1); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Gate is consulted by the gateway before every extraction. It fails fast
// with MOUNT_UNAVAILABLE while the circuit for the path's root is open,
// without touching the filesystem.
func (m *Monitor) Gate(path string) error {
	root := m.rootOf(path)
	if root == "" {
		return nil
	}

	breaker := m.breakers.GetBreaker(root)
	if breaker.GetState() == circuit.StateOpen {
		status := m.lastStatus(root)
		return errors.Newf(errors.ErrCodeMountUnavailable,
			"storage root %s is unavailable (circuit open, %d consecutive failures)",
			root, status.ConsecutiveFailures).
			WithComponent("health").
			WithDetail("path", root).
			WithDetail("last_latency_ms", status.Latency.Milliseconds())
	}
	return nil
}

// Status returns a snapshot of every probed root's health
func (m *Monitor) Status() map[string]types.MountStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]types.MountStatus, len(m.statuses))
	for path, status := range m.statuses {
		status.CircuitState = m.breakers.GetBreaker(path).GetState().String()
		out[path] = status
	}
	return out
}

// Healthy reports whether no circuit is currently open
func (m *Monitor) Healthy() bool {
	return m.breakers.HealthCheck() == nil
}

func (m *Monitor) lastStatus(path string) types.MountStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if status, ok := m.statuses[path]; ok {
		return status
	}
	return types.MountStatus{Path: path}
}

func (m *Monitor) setStatus(path string, status types.MountStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[path] = status
}

// rootOf returns the probed root containing path, or "" when the path lives
// outside every probed root (object-store surveys, for one) and is therefore
// not gated by any breaker.
func (m *Monitor) rootOf(path string) string {
	for _, root := range m.roots {
		if strings.HasPrefix(path, root) {
			return root
		}
	}
	return ""
}
