// Package breaker builds the circuit breakers guarding external services.
package breaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/soil_advisor/pkg/logger"
)

// Settings: the breaker opens after Failures consecutive failures, stays open
// for OpenFor, and clears its counts every Interval while closed.
type Settings struct {
	Name     string
	Failures int
	OpenFor  time.Duration
	Interval time.Duration

	// IsSuccessful marks errors that must not count as failures, such as
	// client errors. Nil counts every error.
	IsSuccessful func(err error) bool
}

func New(s Settings) *gobreaker.CircuitBreaker {
	if s.Failures < 1 {
		s.Failures = 1
	}
	if s.OpenFor <= 0 {
		s.OpenFor = 10 * time.Second
	}
	fails := uint32(s.Failures)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     s.Name,
		Interval: s.Interval,
		Timeout:  s.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
		IsSuccessful: s.IsSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Default().Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// IsOpen reports whether err was returned because the breaker rejected the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
