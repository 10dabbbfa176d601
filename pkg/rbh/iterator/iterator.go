// Package iterator provides the streaming primitives used throughout the
// library: a generic single-consumer iterator interface and the array,
// chunkify and tee combinators that shape event and result streams.
//
// Exhaustion and failure are never conflated. Next returns ErrNoMoreData
// when the stream ends cleanly and any other error on actual failure; a
// successful step never disturbs caller-visible error state.
package iterator

import "errors"

// ErrNoMoreData is returned by Next when the iterator is exhausted.
// It signals clean end-of-stream, never a failure.
var ErrNoMoreData = errors.New("no more data")

// Iterator yields a stream of elements.
//
// Each handle is single-consumer: callers drive Next synchronously and
// must call Close exactly once, whether or not the stream was fully
// consumed. Ownership of each yielded element transfers to the caller.
type Iterator[T any] interface {
	// Next returns the next element of the stream. It returns
	// ErrNoMoreData once the stream is exhausted; any other error is a
	// real failure and the iterator should not be advanced further.
	Next() (T, error)

	// Close releases the iterator's resources, cancelling any in-flight
	// cursor. Closing an exhausted or partially-consumed iterator is
	// equally valid.
	Close() error
}

// Collect drains it into a slice. The iterator is not closed.
func Collect[T any](it Iterator[T]) ([]T, error) {
	var out []T
	for {
		elem, err := it.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreData) {
				return out, nil
			}
			return out, err
		}
		out = append(out, elem)
	}
}

// Drain advances it to exhaustion, discarding elements, and returns the
// number of elements consumed. The iterator is not closed.
func Drain[T any](it Iterator[T]) (int, error) {
	count := 0
	for {
		_, err := it.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreData) {
				return count, nil
			}
			return count, err
		}
		count++
	}
}
