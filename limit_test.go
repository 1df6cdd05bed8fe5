package bincode

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedWithinBudget(t *testing.T) {
	b := NewBounded(10)

	for _, n := range []uint64{3, 0, 4, 3} {
		require.NoError(t, b.Add(n))
	}

	remaining, bounded := b.Limit()
	assert.True(t, bounded)
	assert.Equal(t, uint64(0), remaining)
	assert.False(t, b.Exhausted())
}

func TestBoundedFailsAtBoundary(t *testing.T) {
	b := NewBounded(10)

	require.NoError(t, b.Add(4))
	require.NoError(t, b.Add(4))

	// The chunk is refused as a whole.
	assert.ErrorIs(t, b.Add(3), ErrSizeLimit)
	remaining, _ := b.Limit()
	assert.Equal(t, uint64(2), remaining)
	assert.True(t, b.Exhausted())

	// Nothing succeeds afterwards, not even chunks that would fit.
	assert.ErrorIs(t, b.Add(1), ErrSizeLimit)
	assert.ErrorIs(t, b.Add(0), ErrSizeLimit)
}

func TestInfinite(t *testing.T) {
	var limit SizeLimit = Infinite{}

	for _, n := range []uint64{0, 1, math.MaxUint32, math.MaxUint64} {
		assert.NoError(t, limit.Add(n))
	}

	_, bounded := limit.Limit()
	assert.False(t, bounded)
}

func TestBoundedClone(t *testing.T) {
	b := NewBounded(8)
	require.NoError(t, b.Add(2))

	clone := b.Clone()
	require.NoError(t, clone.Add(6))

	remaining, _ := b.Limit()
	assert.Equal(t, uint64(6), remaining)

	remaining, _ = clone.Limit()
	assert.Equal(t, uint64(0), remaining)
}

func TestCountSizeForwards(t *testing.T) {
	counter := &countSize{other: NewBounded(5)}

	require.NoError(t, counter.Add(3))
	assert.Equal(t, uint64(3), counter.total)

	assert.ErrorIs(t, counter.Add(3), ErrSizeLimit)
	assert.Equal(t, uint64(3), counter.total)

	unbounded := &countSize{other: Infinite{}}
	require.NoError(t, unbounded.Add(math.MaxUint32))
	require.NoError(t, unbounded.Add(1))
	assert.Equal(t, uint64(math.MaxUint32+1), unbounded.total)

	_, bounded := unbounded.Limit()
	assert.False(t, bounded)
}
