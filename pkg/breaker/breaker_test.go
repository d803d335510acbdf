package breaker

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func fail() (interface{}, error) { return nil, errBoom }

func TestNew(t *testing.T) {
	t.Run("Should open after consecutive failures", func(t *testing.T) {
		cb := New(Settings{Name: "team", Failures: 2, OpenFor: time.Minute})

		_, _ = cb.Execute(fail)
		assert.Equal(t, gobreaker.StateClosed, cb.State())
		_, _ = cb.Execute(fail)
		assert.Equal(t, gobreaker.StateOpen, cb.State())

		_, err := cb.Execute(fail)
		assert.True(t, IsOpen(err))
	})

	t.Run("Should half-open after the open window", func(t *testing.T) {
		cb := New(Settings{Name: "weather", Failures: 1, OpenFor: 20 * time.Millisecond})
		_, _ = cb.Execute(fail)

		assert.Eventually(t, func() bool {
			return cb.State() == gobreaker.StateHalfOpen
		}, time.Second, 5*time.Millisecond)

		_, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
		assert.NoError(t, err)
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})

	t.Run("Should not count errors marked successful", func(t *testing.T) {
		cb := New(Settings{
			Name:         "team",
			Failures:     1,
			IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, errBoom) },
		})

		_, err := cb.Execute(fail)

		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})
}

func TestIsOpen(t *testing.T) {
	assert.True(t, IsOpen(fmt.Errorf("weather: %w", gobreaker.ErrOpenState)))
	assert.True(t, IsOpen(gobreaker.ErrTooManyRequests))
	assert.False(t, IsOpen(errBoom))
	assert.False(t, IsOpen(nil))
}
