package iterator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlice(t *testing.T) {
	it := Slice([]string{"a", "b", "c"})
	defer it.Close()

	collected, err := Collect(it)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, collected)

	// Exhaustion is stable.
	_, err = it.Next()
	assert.ErrorIs(t, err, ErrNoMoreData)
	_, err = it.Next()
	assert.ErrorIs(t, err, ErrNoMoreData)
}

func TestSlice_Empty(t *testing.T) {
	it := Slice[int](nil)
	defer it.Close()

	_, err := it.Next()
	assert.ErrorIs(t, err, ErrNoMoreData)
}

func TestDrain(t *testing.T) {
	it := Slice([]int{1, 2, 3, 4})
	defer it.Close()

	count, err := Drain(it)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

// failingIterator yields its elements, then a failure distinct from
// exhaustion.
type failingIterator struct {
	elems []int
	err   error
}

func (f *failingIterator) Next() (int, error) {
	if len(f.elems) == 0 {
		return 0, f.err
	}
	elem := f.elems[0]
	f.elems = f.elems[1:]
	return elem, nil
}

func (f *failingIterator) Close() error { return nil }

func TestCollect_PropagatesFailure(t *testing.T) {
	boom := errors.New("boom")
	it := &failingIterator{elems: []int{1, 2}, err: boom}

	collected, err := Collect[int](it)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1, 2}, collected)
}
