package iterator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func next[T any](t *testing.T, it Iterator[T]) T {
	t.Helper()
	elem, err := it.Next()
	require.NoError(t, err)
	return elem
}

func TestTee_InterleavedSiblings(t *testing.T) {
	a, b := Tee(Slice([]int{1, 2, 3}))
	defer a.Close()
	defer b.Close()

	assert.Equal(t, 1, next(t, a))
	assert.Equal(t, 2, next(t, a))
	assert.Equal(t, 1, next(t, b))
	assert.Equal(t, 3, next(t, a))
	assert.Equal(t, 2, next(t, b))
	assert.Equal(t, 3, next(t, b))

	_, err := a.Next()
	assert.ErrorIs(t, err, ErrNoMoreData)
	_, err = b.Next()
	assert.ErrorIs(t, err, ErrNoMoreData)
}

// TestTee_Equivalence asserts that both siblings observe the source
// sequence in order for several interleaving patterns.
func TestTee_Equivalence(t *testing.T) {
	source := []int{10, 20, 30, 40, 50}

	patterns := []struct {
		name string
		// steps: true advances sibling A, false advances sibling B. The
		// pattern is repeated until both siblings are exhausted.
		steps []bool
	}{
		{"lockstep", []bool{true, false}},
		{"a first", []bool{true}},
		{"b first", []bool{false}},
		{"bursts", []bool{true, true, true, false, false}},
	}

	for _, pattern := range patterns {
		t.Run(pattern.name, func(t *testing.T) {
			a, b := Tee(Slice(source))
			defer a.Close()
			defer b.Close()

			var gotA, gotB []int
			doneA, doneB := false, false
			for step := 0; !doneA || !doneB; step++ {
				useA := pattern.steps[step%len(pattern.steps)]
				if useA && doneA {
					useA = false
				}
				if !useA && doneB {
					useA = true
				}

				if useA {
					elem, err := a.Next()
					if err != nil {
						require.ErrorIs(t, err, ErrNoMoreData)
						doneA = true
						continue
					}
					gotA = append(gotA, elem)
				} else {
					elem, err := b.Next()
					if err != nil {
						require.ErrorIs(t, err, ErrNoMoreData)
						doneB = true
						continue
					}
					gotB = append(gotB, elem)
				}
			}

			assert.Equal(t, source, gotA)
			assert.Equal(t, source, gotB)
		})
	}
}

// TestTee_BoundedQueueRetry verifies the deferred-share protocol: when
// the lead sibling outruns the queue the element is parked, the failure
// surfaces, and a later call on either sibling resolves it without loss.
func TestTee_BoundedQueueRetry(t *testing.T) {
	a, b := TeeCapacity(Slice([]int{1, 2, 3}), 1)
	defer a.Close()
	defer b.Close()

	assert.Equal(t, 1, next(t, a)) // b's queue: [1]

	// Reading 2 would buffer it for b, but the queue is full: the
	// element parks and the failure surfaces.
	_, err := a.Next()
	assert.ErrorIs(t, err, ErrQueueFull)

	// The retry delivers the parked element to the producer; the share
	// itself stays pending (one element per sibling, never more).
	assert.Equal(t, 2, next(t, a))

	// Advancing further would leave the pending element unshared: still
	// refused until b drains.
	_, err = a.Next()
	assert.ErrorIs(t, err, ErrQueueFull)

	assert.Equal(t, 1, next(t, b)) // drains b's queue
	assert.Equal(t, 2, next(t, b)) // the parked element, in order

	// Now the stream flows again; nothing was lost on either side.
	assert.Equal(t, 3, next(t, a))
	assert.Equal(t, 3, next(t, b))
}

// TestTee_PendingConsumedByLaggard verifies that the lagging sibling can
// consume the parked element directly once its queue drains.
func TestTee_PendingConsumedByLaggard(t *testing.T) {
	a, b := TeeCapacity(Slice([]int{1, 2}), 1)
	defer a.Close()
	defer b.Close()

	assert.Equal(t, 1, next(t, a)) // b's queue: [1]

	_, err := a.Next() // parks 2
	assert.ErrorIs(t, err, ErrQueueFull)

	assert.Equal(t, 1, next(t, b))
	assert.Equal(t, 2, next(t, b)) // parked element, in order
	assert.Equal(t, 2, next(t, a)) // and the producer still gets it

	_, err = a.Next()
	assert.ErrorIs(t, err, ErrNoMoreData)
	_, err = b.Next()
	assert.ErrorIs(t, err, ErrNoMoreData)
}

// closeCounter records whether Close was called on the source.
type closeCounter struct {
	Iterator[int]
	closes int
}

func (c *closeCounter) Close() error {
	c.closes++
	return c.Iterator.Close()
}

func TestTee_LastCloseClosesSource(t *testing.T) {
	source := &closeCounter{Iterator: Slice([]int{1, 2, 3})}
	a, b := Tee[int](source)

	require.NoError(t, a.Close())
	assert.Equal(t, 0, source.closes, "source must stay open for the remaining sibling")

	// The surviving sibling still sees the full stream.
	collected, err := Collect[int](b)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, collected)

	require.NoError(t, b.Close())
	assert.Equal(t, 1, source.closes)

	// Closing twice is harmless.
	require.NoError(t, b.Close())
	assert.Equal(t, 1, source.closes)
}

func TestTee_CloseLaggardDropsItsQueue(t *testing.T) {
	a, b := Tee(Slice([]int{1, 2, 3}))

	assert.Equal(t, 1, next(t, a))
	assert.Equal(t, 2, next(t, a))
	require.NoError(t, b.Close())

	// The survivor reads the rest directly.
	assert.Equal(t, 3, next(t, a))
	_, err := a.Next()
	assert.ErrorIs(t, err, ErrNoMoreData)
	require.NoError(t, a.Close())
}
