package remote

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReleaser struct {
	count atomic.Int32
}

func (r *countingReleaser) Release() {
	r.count.Add(1)
}

func TestReleaseIsIdempotent(t *testing.T) {
	// Arrange
	var signals atomic.Int32
	sub := NewProxySubscription(func() { signals.Add(1) })

	// Act
	sub.Release()
	require.NotPanics(t, sub.Release)

	// Assert
	assert.Equal(t, int32(1), signals.Load())
	assert.True(t, sub.Released())
}

func TestReleaseCascadesToChildren(t *testing.T) {
	sub := NewProxySubscription(nil)
	a, b := &countingReleaser{}, &countingReleaser{}
	sub.Add(a)
	sub.Add(b)

	sub.Release()
	sub.Release()

	assert.Equal(t, int32(1), a.count.Load())
	assert.Equal(t, int32(1), b.count.Load())
}

func TestAddAfterReleaseFiresImmediately(t *testing.T) {
	sub := NewProxySubscription(nil)
	sub.Release()

	child := &countingReleaser{}
	sub.Add(child)

	assert.Equal(t, int32(1), child.count.Load())
}

func TestReleaserPanicDoesNotCorruptState(t *testing.T) {
	sub := NewProxySubscription(func() { panic("channel already torn down") })
	child := &countingReleaser{}
	sub.Add(child)

	require.NotPanics(t, sub.Release)

	assert.True(t, sub.Released())
	assert.Equal(t, int32(1), child.count.Load())
	require.NotPanics(t, sub.Release)
}

func TestUnsubscribeAliasesRelease(t *testing.T) {
	var signals atomic.Int32
	sub := NewProxySubscription(func() { signals.Add(1) })

	sub.Unsubscribe()
	sub.Unsubscribe()

	assert.Equal(t, int32(1), signals.Load())
}
