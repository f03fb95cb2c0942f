package circuitbreaker_test

import (
	"fmt"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/escrowd/pkg/circuitbreaker"
)

func TestCircuitBreaker(t *testing.T) {
	cb := circuitbreaker.NewCircuitBreaker()
	failing := func() (interface{}, error) {
		return nil, fmt.Errorf("boom")
	}

	for i := 0; i <= circuitbreaker.MaxNumOfFailingRequests; i++ {
		require.Equal(t, gobreaker.StateClosed, cb.State())
		_, err := cb.Execute(failing)
		require.EqualError(t, err, "boom")
	}

	require.Equal(t, gobreaker.StateOpen, cb.State())
	_, err := cb.Execute(failing)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
}
