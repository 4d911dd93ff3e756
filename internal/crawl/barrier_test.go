package crawl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrierFanOut(t *testing.T) {
	b := newBarrier()
	require.NoError(t, b.firstRequestSent())
	require.NoError(t, b.firstResponse(3))
	assert.False(t, b.complete())

	closed, err := b.subUnitResolved()
	require.NoError(t, err)
	assert.False(t, closed)
	closed, err = b.subUnitResolved()
	require.NoError(t, err)
	assert.False(t, closed)
	closed, err = b.subUnitResolved()
	require.NoError(t, err)
	assert.True(t, closed, "last sub-unit closes the barrier")
	assert.True(t, b.complete())
	assert.False(t, b.noData())
}

func TestBarrierZeroSubunitsResolvesImmediately(t *testing.T) {
	b := newBarrier()
	require.NoError(t, b.firstRequestSent())
	require.NoError(t, b.firstResponse(0))
	assert.True(t, b.complete())
	assert.True(t, b.noData())
}

func TestBarrierRejectsInvalidTransitions(t *testing.T) {
	b := newBarrier()
	_, err := b.subUnitResolved()
	assert.Error(t, err, "no sub-units before the first response")
	assert.Error(t, b.firstResponse(1), "no response before the request")

	require.NoError(t, b.firstRequestSent())
	assert.Error(t, b.firstRequestSent(), "double issue")
	assert.Error(t, b.firstResponse(-1))

	require.NoError(t, b.firstResponse(1))
	closed, err := b.subUnitResolved()
	require.NoError(t, err)
	assert.True(t, closed)
	_, err = b.subUnitResolved()
	assert.Error(t, err, "resolution after close")
}
