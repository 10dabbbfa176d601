package iterator

import "errors"

// ErrInvalidArgument is returned by combinator constructors on bad
// arguments (e.g. a zero chunk size).
var ErrInvalidArgument = errors.New("invalid argument")

// chunkedIterator splits a source iterator into consecutive chunks of at
// most `chunk` elements each.
//
// All chunks share the single cursor of the underlying iterator and
// elements are consumed only when a chunk iterator is advanced. Asking
// the outer iterator for the next chunk invalidates the previous one:
// whatever the previous chunk had not consumed is skipped, and the
// element read to open the new chunk becomes its first element.
type chunkedIterator[T any] struct {
	source    Iterator[T]
	chunk     int
	gen       int // bumped on every outer Next; stale chunks stop yielding
	exhausted bool
	srcErr    error
}

// Chunkify wraps source into an iterator of chunk iterators, each
// yielding at most chunk elements. A chunk size of zero is rejected with
// ErrInvalidArgument.
//
// Closing the outer iterator closes the source. Chunk iterators borrow
// the shared cursor and their Close never touches the source.
func Chunkify[T any](source Iterator[T], chunk int) (Iterator[Iterator[T]], error) {
	if chunk <= 0 {
		return nil, ErrInvalidArgument
	}
	return &chunkedIterator[T]{source: source, chunk: chunk}, nil
}

func (c *chunkedIterator[T]) Next() (Iterator[T], error) {
	if c.srcErr != nil {
		return nil, c.srcErr
	}
	if c.exhausted {
		return nil, ErrNoMoreData
	}

	// Peek one element so an exhausted source yields no empty trailing
	// chunk. The element carries over as the head of the new chunk.
	head, err := c.source.Next()
	if err != nil {
		if errors.Is(err, ErrNoMoreData) {
			c.exhausted = true
			return nil, ErrNoMoreData
		}
		c.srcErr = err
		return nil, err
	}

	c.gen++
	return &chunkIterator[T]{
		parent:    c,
		gen:       c.gen,
		head:      head,
		hasHead:   true,
		remaining: c.chunk,
	}, nil
}

func (c *chunkedIterator[T]) Close() error {
	c.gen++ // orphan any outstanding chunk
	return c.source.Close()
}

// chunkIterator yields up to `remaining` elements from the shared cursor.
type chunkIterator[T any] struct {
	parent    *chunkedIterator[T]
	gen       int
	head      T
	hasHead   bool
	remaining int
}

func (it *chunkIterator[T]) Next() (T, error) {
	var zero T
	if it.gen != it.parent.gen || it.remaining == 0 {
		return zero, ErrNoMoreData
	}
	if it.hasHead {
		it.hasHead = false
		it.remaining--
		return it.head, nil
	}

	elem, err := it.parent.source.Next()
	if err != nil {
		if errors.Is(err, ErrNoMoreData) {
			it.parent.exhausted = true
			it.remaining = 0
			return zero, ErrNoMoreData
		}
		it.parent.srcErr = err
		return zero, err
	}
	it.remaining--
	return elem, nil
}

// Close detaches the chunk from the shared cursor without consuming the
// remainder; the next chunk picks up where this one stopped.
func (it *chunkIterator[T]) Close() error {
	it.remaining = 0
	return nil
}
