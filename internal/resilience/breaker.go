// Package resilience provides reliability patterns for collaborator lookups.
package resilience

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen matches every error a breaker returns while rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// OpenError names the collaborator whose breaker rejected a call.
type OpenError struct {
	Name    string
	RetryAt time.Time
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("%s lookups unavailable until %s: %v", e.Name, e.RetryAt.UTC().Format(time.RFC3339), ErrCircuitOpen)
}

// Is reports whether target is ErrCircuitOpen.
func (e *OpenError) Is(target error) bool { return target == ErrCircuitOpen }

// Breaker is a circuit breaker for one collaborator. It opens after
// maxFailures consecutive failures, rejects calls for timeout, then admits a
// single trial call: success closes it, failure opens it again.
type Breaker struct {
	name     string
	timeout  time.Duration
	neutral  func(error) bool
	cb       *gobreaker.CircuitBreaker
	openedAt atomic.Int64
}

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

// WithNeutral marks errors that are passed through to the caller without
// counting as failures, such as a lookup reporting a missing record.
func WithNeutral(fn func(error) bool) BreakerOption {
	return func(b *Breaker) { b.neutral = fn }
}

// NewBreaker creates a closed breaker for the named collaborator.
func NewBreaker(name string, maxFailures int, timeout time.Duration, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:    name,
		timeout: timeout,
		neutral: func(error) bool { return false },
	}
	for _, opt := range opts {
		opt(b)
	}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(max(maxFailures, 1))
		},
		IsSuccessful:  func(err error) bool { return err == nil || b.neutral(err) },
		OnStateChange: func(_ string, _, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				b.openedAt.Store(time.Now().UnixNano())
			}
		},
	})
	return b
}

// Execute runs fn unless the breaker rejects the call with an *OpenError.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) { return nil, fn() })
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return &OpenError{Name: b.name, RetryAt: time.Unix(0, b.openedAt.Load()).Add(b.timeout)}
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return &OpenError{Name: b.name, RetryAt: time.Now()}
	}
	return err
}

// Open reports whether the breaker is currently rejecting calls.
func (b *Breaker) Open() bool { return b.cb.State() == gobreaker.StateOpen }

// Breakers hands out one breaker per collaborator, created on first use with
// a shared configuration.
type Breakers struct {
	maxFailures int
	timeout     time.Duration
	opts        []BreakerOption

	mu     sync.Mutex
	byName map[string]*Breaker
}

// NewBreakers returns an empty set.
func NewBreakers(maxFailures int, timeout time.Duration, opts ...BreakerOption) *Breakers {
	return &Breakers{
		maxFailures: maxFailures,
		timeout:     timeout,
		opts:        opts,
		byName:      make(map[string]*Breaker),
	}
}

// For returns the breaker for name.
func (bs *Breakers) For(name string) *Breaker {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	b, ok := bs.byName[name]
	if !ok {
		b = NewBreaker(name, bs.maxFailures, bs.timeout, bs.opts...)
		bs.byName[name] = b
	}
	return b
}

// Open lists, sorted, the collaborators whose breakers are rejecting calls.
func (bs *Breakers) Open() []string {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	var open []string
	for name, b := range bs.byName {
		if b.Open() {
			open = append(open, name)
		}
	}
	slices.Sort(open)
	return open
}
