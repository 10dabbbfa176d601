package iterator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectChunks drains every chunk fully, returning one slice per chunk.
func collectChunks[T any](t *testing.T, outer Iterator[Iterator[T]]) [][]T {
	t.Helper()

	var chunks [][]T
	for {
		chunk, err := outer.Next()
		if errors.Is(err, ErrNoMoreData) {
			return chunks
		}
		require.NoError(t, err)

		elems, err := Collect(chunk)
		require.NoError(t, err)
		chunks = append(chunks, elems)
	}
}

func TestChunkify_SplitsEvenly(t *testing.T) {
	outer, err := Chunkify(Slice([]string{"a", "b", "c", "d", "e"}), 2)
	require.NoError(t, err)
	defer outer.Close()

	chunks := collectChunks[string](t, outer)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, chunks)
}

func TestChunkify_ExactMultiple(t *testing.T) {
	outer, err := Chunkify(Slice([]int{1, 2, 3, 4}), 2)
	require.NoError(t, err)
	defer outer.Close()

	chunks := collectChunks[int](t, outer)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}}, chunks)
}

func TestChunkify_ZeroChunkRejected(t *testing.T) {
	_, err := Chunkify(Slice([]int{1}), 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestChunkify_EmptySource(t *testing.T) {
	outer, err := Chunkify(Slice[int](nil), 3)
	require.NoError(t, err)
	defer outer.Close()

	_, err = outer.Next()
	assert.ErrorIs(t, err, ErrNoMoreData)
}

// TestChunkify_Totality asserts that for any source and chunk size,
// concatenating all chunks reproduces the source sequence.
func TestChunkify_Totality(t *testing.T) {
	for n := 0; n <= 7; n++ {
		for chunk := 1; chunk <= 8; chunk++ {
			source := make([]int, n)
			for i := range source {
				source[i] = i
			}

			outer, err := Chunkify(Slice(source), chunk)
			require.NoError(t, err)

			concatenated := []int{}
			for _, c := range collectChunks[int](t, outer) {
				concatenated = append(concatenated, c...)
			}
			assert.Equal(t, source, concatenated, "n=%d chunk=%d", n, chunk)
			outer.Close()
		}
	}
}

// TestChunkify_SkippedChunkRemainder verifies the shared-cursor rule:
// advancing the outer iterator abandons the unread remainder of the
// previous chunk, and the element at the boundary opens the next chunk.
func TestChunkify_SkippedChunkRemainder(t *testing.T) {
	outer, err := Chunkify(Slice([]string{"a", "b", "c", "d", "e"}), 2)
	require.NoError(t, err)
	defer outer.Close()

	first, err := outer.Next()
	require.NoError(t, err)

	elem, err := first.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", elem)

	// Leave "b" unread in the first chunk: ask for the next chunk
	// straight away. "b" was never taken from the source, so it opens
	// the second chunk.
	second, err := outer.Next()
	require.NoError(t, err)

	elems, err := Collect(second)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, elems)

	// The abandoned chunk is dead, not an error.
	_, err = first.Next()
	assert.ErrorIs(t, err, ErrNoMoreData)
}

func TestChunkify_SourceFailureSurfaces(t *testing.T) {
	boom := errors.New("boom")
	outer, err := Chunkify[int](&failingIterator{elems: []int{1, 2, 3}, err: boom}, 2)
	require.NoError(t, err)
	defer outer.Close()

	chunk, err := outer.Next()
	require.NoError(t, err)
	_, err = chunk.Next()
	require.NoError(t, err)
	_, err = chunk.Next()
	require.NoError(t, err)

	// The failure shows up both in the chunk and in the outer iterator.
	chunk2, err := outer.Next()
	require.NoError(t, err)
	_, err = chunk2.Next()
	require.NoError(t, err)
	_, err = chunk2.Next()
	assert.ErrorIs(t, err, boom)

	_, err = outer.Next()
	assert.ErrorIs(t, err, boom)
}
