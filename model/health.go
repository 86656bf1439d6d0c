package model

import (
	"sync"
	"time"
)

// EndpointHealth is a snapshot of one endpoint's circuit state.
type EndpointHealth struct {
	Available       bool      `json:"available"`
	LastSuccess     time.Time `json:"last_success,omitempty"`
	LastFailure     time.Time `json:"last_failure,omitempty"`
	FailureCount    int       `json:"failure_count"`
	CircuitOpen     bool      `json:"circuit_open"`
	CircuitOpenedAt time.Time `json:"circuit_opened_at,omitempty"`
}

// HealthConfig configures the circuit breaker.
type HealthConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int

	// RecoveryTimeout is how long an open circuit rejects requests before a
	// trial request is let through.
	RecoveryTimeout time.Duration
}

// DefaultHealthConfig returns the default breaker settings.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	}
}

type healthState struct {
	mu       sync.Mutex
	config   HealthConfig
	now      func() time.Time
	statuses map[string]*EndpointHealth
}

func newHealthState(cfg HealthConfig) *healthState {
	return &healthState{
		config:   cfg,
		now:      time.Now,
		statuses: make(map[string]*EndpointHealth),
	}
}

// tracker returns the health state, creating it on first use.
func (r *Registry) tracker() *healthState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.health == nil {
		r.health = newHealthState(DefaultHealthConfig())
	}
	return r.health
}

// MarkEndpointSuccess records a successful request and closes the circuit.
func (r *Registry) MarkEndpointSuccess(name string) {
	h := r.tracker()
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.status(name)
	s.LastSuccess = h.now()
	s.FailureCount = 0
	s.Available = true
	s.CircuitOpen = false
}

// MarkEndpointFailure records a failed request and opens the circuit once the
// failure threshold is reached.
func (r *Registry) MarkEndpointFailure(name string) {
	h := r.tracker()
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.status(name)
	s.LastFailure = h.now()
	s.FailureCount++
	if s.FailureCount >= h.config.FailureThreshold && !s.CircuitOpen {
		s.CircuitOpen = true
		s.CircuitOpenedAt = s.LastFailure
		s.Available = false
	}
}

func (h *healthState) status(name string) *EndpointHealth {
	s, ok := h.statuses[name]
	if !ok {
		s = &EndpointHealth{Available: true}
		h.statuses[name] = s
	}
	return s
}

// IsEndpointAvailable reports whether requests may go to an endpoint. An open
// circuit admits requests again once the recovery timeout has passed.
func (r *Registry) IsEndpointAvailable(name string) bool {
	h := r.tracker()
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.statuses[name]
	if !ok || !s.CircuitOpen {
		return true
	}
	return h.now().Sub(s.CircuitOpenedAt) > h.config.RecoveryTimeout
}

// GetEndpointHealth returns a copy of an endpoint's health, or nil if no
// request has been recorded for it.
func (r *Registry) GetEndpointHealth(name string) *EndpointHealth {
	h := r.tracker()
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.statuses[name]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

// GetAvailableFallbackChain returns the fallback chain without endpoints whose
// circuit is open. If every endpoint is open the full chain is returned.
func (r *Registry) GetAvailableFallbackChain(c Capability) []string {
	chain := r.GetFallbackChain(c)
	available := make([]string, 0, len(chain))
	for _, name := range chain {
		if r.IsEndpointAvailable(name) {
			available = append(available, name)
		}
	}
	if len(available) == 0 {
		return chain
	}
	return available
}

// SetHealthConfig replaces the breaker settings.
func (r *Registry) SetHealthConfig(cfg HealthConfig) {
	h := r.tracker()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.config = cfg
}

// ResetEndpointHealth clears the health status for an endpoint.
func (r *Registry) ResetEndpointHealth(name string) {
	h := r.tracker()
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.statuses, name)
}
