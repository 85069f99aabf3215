package remote

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwaitResolvesOnceSharedAcrossAwaiters(t *testing.T) {
	// Arrange
	var resolutions atomic.Int32
	future := NewFuture(func(context.Context) (int, error) {
		resolutions.Add(1)
		return 42, nil
	})

	// Act
	var wg sync.WaitGroup
	results := make([]int, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := future.Await(t.Context())
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	// Assert
	assert.Equal(t, int32(1), resolutions.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestSettledFuture(t *testing.T) {
	future := Settled("ready")

	v, err := future.Await(t.Context())

	assert.NoError(t, err)
	assert.Equal(t, "ready", v)
}

func TestAwaitPropagatesRejection(t *testing.T) {
	rejection := errors.New("dial failed")
	future := NewFuture(func(context.Context) (int, error) {
		return 0, rejection
	})

	_, err := future.Await(t.Context())

	assert.ErrorIs(t, err, rejection)
}

func TestAwaitCancelDoesNotPoisonResolution(t *testing.T) {
	// Arrange: a resolver that stays pending until told otherwise.
	gate := make(chan struct{})
	future := NewFuture(func(context.Context) (int, error) {
		<-gate
		return 7, nil
	})

	// Act: the first awaiter gives up before the resolution settles.
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := future.Await(ctx)
	require.ErrorIs(t, err, context.Canceled)

	close(gate)
	v, err := future.Await(t.Context())

	// Assert: the shared resolution still settled for later awaiters.
	assert.NoError(t, err)
	assert.Equal(t, 7, v)
}
