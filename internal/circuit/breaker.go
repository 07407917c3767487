package circuit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	// StateClosed - circuit breaker is closed, requests pass through
	StateClosed State = iota
	// StateOpen - circuit breaker is open, requests are rejected immediately
	StateOpen
	// StateHalfOpen - circuit breaker allows a single trial request
	StateHalfOpen
)

// String returns string representation of state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config contains circuit breaker configuration
type Config struct {
	// FailureThreshold is the number of consecutive failures in the closed
	// state that trips the breaker open
	FailureThreshold int `yaml:"failure_threshold"`

	// Cooldown is the period of the open state after which the breaker
	// enters half-open and allows a single trial request
	Cooldown time.Duration `yaml:"cooldown"`

	// Function called when state changes
	OnStateChange func(name string, from State, to State) `yaml:"-"`
}

// Counts holds the numbers of requests and their successes/failures
type Counts struct {
	Requests             uint32    `json:"requests"`
	TotalSuccesses       uint32    `json:"total_successes"`
	TotalFailures        uint32    `json:"total_failures"`
	ConsecutiveSuccesses uint32    `json:"consecutive_successes"`
	ConsecutiveFailures  uint32    `json:"consecutive_failures"`
	LastActivity         time.Time `json:"last_activity"`
}

// Breaker implements the circuit breaker pattern for one backing resource.
// Transitions: Closed→Open after FailureThreshold consecutive failures,
// Open→HalfOpen after Cooldown, HalfOpen→Closed on success (counters reset),
// HalfOpen→Open on failure (cooldown restarts).
type Breaker struct {
	name   string
	config Config

	mu        sync.Mutex
	state     State
	counts    Counts
	openUntil time.Time
	trialing  bool
}

// NewBreaker creates a new circuit breaker instance
func NewBreaker(name string, config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 3
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}

	return &Breaker{
		name:   name,
		config: config,
		state:  StateClosed,
	}
}

// Errors

var (
	// ErrOpenState is returned when the circuit breaker is open
	ErrOpenState = errors.New("circuit breaker is open")

	// ErrTrialInFlight is returned when the half-open trial slot is taken
	ErrTrialInFlight = errors.New("circuit breaker trial already in flight")
)

// Allow reports whether a request may proceed. In the half-open state only a
// single trial request is admitted; its outcome must be reported via
// RecordResult.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.advance(now)

	switch b.state {
	case StateOpen:
		return ErrOpenState
	case StateHalfOpen:
		if b.trialing {
			return ErrTrialInFlight
		}
		b.trialing = true
	}

	b.counts.onRequest()
	return nil
}

// RecordResult reports the outcome of a request previously admitted by Allow.
func (b *Breaker) RecordResult(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.advance(now)

	if err == nil {
		b.onSuccess(now)
	} else {
		b.onFailure(now)
	}
}

// Execute runs the given function if the circuit breaker allows it
func (b *Breaker) Execute(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}

	err := fn()
	b.RecordResult(err)
	return err
}

func (b *Breaker) onSuccess(now time.Time) {
	b.counts.onSuccess()

	if b.state == StateHalfOpen {
		b.trialing = false
		b.setState(StateClosed, now)
	}
}

func (b *Breaker) onFailure(now time.Time) {
	b.counts.onFailure()

	switch b.state {
	case StateClosed:
		if int(b.counts.ConsecutiveFailures) >= b.config.FailureThreshold {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.trialing = false
		b.setState(StateOpen, now)
	}
}

// advance applies the time-driven Open→HalfOpen transition.
func (b *Breaker) advance(now time.Time) {
	if b.state == StateOpen && now.After(b.openUntil) {
		b.setState(StateHalfOpen, now)
	}
}

// setState changes the state of the circuit breaker
func (b *Breaker) setState(state State, now time.Time) {
	prev := b.state
	if prev == state {
		return
	}

	b.state = state

	switch state {
	case StateClosed:
		b.counts.clear()
	case StateOpen:
		b.openUntil = now.Add(b.config.Cooldown)
	case StateHalfOpen:
		b.trialing = false
	}

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.name, prev, state)
	}
}

// GetState returns the current state of the circuit breaker
func (b *Breaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(time.Now())
	return b.state
}

// GetCounts returns a copy of the current counts
func (b *Breaker) GetCounts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Reset resets the circuit breaker to its initial state
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.counts.clear()
	b.setState(StateClosed, time.Now())
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// Methods for Counts struct

func (c *Counts) onRequest() {
	c.Requests++
	c.LastActivity = time.Now()
}

func (c *Counts) onSuccess() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) onFailure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

func (c *Counts) clear() {
	c.Requests = 0
	c.TotalSuccesses = 0
	c.TotalFailures = 0
	c.ConsecutiveSuccesses = 0
	c.ConsecutiveFailures = 0
	c.LastActivity = time.Time{}
}

// Manager manages one circuit breaker per backing storage root
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	config   Config
}

// NewManager creates a new circuit breaker manager
func NewManager(config Config) *Manager {
	return &Manager{
		breakers: make(map[string]*Breaker),
		config:   config,
	}
}

// GetBreaker gets or creates a circuit breaker with the given name
func (m *Manager) GetBreaker(name string) *Breaker {
	m.mu.RLock()
	if breaker, exists := m.breakers[name]; exists {
		m.mu.RUnlock()
		return breaker
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check in case another goroutine created it
	if breaker, exists := m.breakers[name]; exists {
		return breaker
	}

	breaker := NewBreaker(name, m.config)
	m.breakers[name] = breaker
	return breaker
}

// ResetAll resets all circuit breakers
func (m *Manager) ResetAll() {
	m.mu.RLock()
	breakers := make([]*Breaker, 0, len(m.breakers))
	for _, breaker := range m.breakers {
		breakers = append(breakers, breaker)
	}
	m.mu.RUnlock()

	for _, breaker := range breakers {
		breaker.Reset()
	}
}

// Stats returns the state and counts for all circuit breakers
func (m *Manager) Stats() map[string]BreakerStats {
	m.mu.RLock()
	breakers := make(map[string]*Breaker, len(m.breakers))
	for name, breaker := range m.breakers {
		breakers[name] = breaker
	}
	m.mu.RUnlock()

	stats := make(map[string]BreakerStats)
	for name, breaker := range breakers {
		stats[name] = BreakerStats{
			Name:   name,
			State:  breaker.GetState(),
			Counts: breaker.GetCounts(),
		}
	}
	return stats
}

// BreakerStats represents statistics for a single circuit breaker
type BreakerStats struct {
	Name   string `json:"name"`
	State  State  `json:"state"`
	Counts Counts `json:"counts"`
}

// HealthCheck returns an error when any managed breaker is open
func (m *Manager) HealthCheck() error {
	stats := m.Stats()

	var open []string
	for name, stat := range stats {
		if stat.State == StateOpen {
			open = append(open, name)
		}
	}

	if len(open) > 0 {
		return fmt.Errorf("circuit breakers open: %v", open)
	}

	return nil
}
