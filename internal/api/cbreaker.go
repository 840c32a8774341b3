package api

import (
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker guards one upstream. After threshold consecutive failures it
// rejects calls for openFor, then admits a single probe: success closes it,
// failure opens it again.
type CircuitBreaker struct {
	name      string
	threshold int
	openFor   time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    breakerState
	failures int
	until    time.Time
	probing  bool
}

var (
	breakersMu       sync.Mutex
	breakers         = map[string]*CircuitBreaker{}
	breakerThreshold = 3
	breakerOpenFor   = 30 * time.Second
)

// ConfigureBreakers sets the parameters for breakers created afterwards.
func ConfigureBreakers(threshold int, openFor time.Duration) {
	breakersMu.Lock()
	defer breakersMu.Unlock()
	if threshold > 0 {
		breakerThreshold = threshold
	}
	if openFor > 0 {
		breakerOpenFor = openFor
	}
}

// GetBreaker returns the named breaker, creating it closed on first use.
func GetBreaker(name string) *CircuitBreaker {
	breakersMu.Lock()
	defer breakersMu.Unlock()
	if b, ok := breakers[name]; ok {
		return b
	}
	b := &CircuitBreaker{name: name, threshold: breakerThreshold, openFor: breakerOpenFor, now: time.Now}
	breakers[name] = b
	SetBreakerState(name, false)
	return b
}

// Allow reports whether a call may go ahead.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case stateOpen:
		if b.clock().Before(b.until) {
			return false
		}
		b.state = stateHalfOpen
		b.probing = true
		return true
	case stateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

func (b *CircuitBreaker) ReportSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	if b.state != stateClosed {
		b.state = stateClosed
		SetBreakerState(b.name, false)
	}
}

func (b *CircuitBreaker) ReportFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if b.state == stateHalfOpen {
		b.trip()
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.trip()
	}
}

func (b *CircuitBreaker) clock() time.Time {
	if b.now == nil {
		return time.Now()
	}
	return b.now()
}

// trip opens the breaker; b.mu must be held.
func (b *CircuitBreaker) trip() {
	b.state = stateOpen
	b.failures = 0
	b.until = b.clock().Add(b.openFor)
	SetBreakerState(b.name, true)
}
