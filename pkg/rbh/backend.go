package rbh

import (
	"context"
	"errors"

	"github.com/rbh-project/rbh/pkg/rbh/iterator"
)

// Backend is a persistent store of filesystem entries fed by change
// events and queried with filters.
//
// Handles are not reentrant: callers issue one operation at a time per
// handle and serialize concurrent updates themselves if ordering
// matters. Every operation may block on I/O with the remote store;
// deadlines are governed by the driver's connection configuration and by
// the supplied context.
type Backend interface {
	// Root returns the unique entry whose parent is the root identifier,
	// projected through proj. It fails with a no-such-entry error when
	// the store holds no root.
	Root(ctx context.Context, proj Projection) (*Entry, error)

	// Update consumes the entire event stream as a single best-effort
	// batch and returns the number of accepted events. The iterator is
	// owned by Update and closed before it returns.
	//
	// A transient store condition yields a retry-later error: the caller
	// may resubmit the same batch. Any other driver failure yields a
	// backend error carrying the driver's message.
	Update(ctx context.Context, events iterator.Iterator[*Event]) (int, error)

	// FilterEntries returns a lazy iterator over the entries matching
	// filter, projected through proj. Each entry is emitted once per
	// namespace edge it is reachable through, with ParentID and Name
	// bound to that edge. The caller must close the iterator; partial
	// iteration must not leak cursors.
	FilterEntries(ctx context.Context, filter *Filter, proj Projection) (iterator.Iterator[*Entry], error)

	// Close releases all backend resources and invalidates every
	// iterator derived from the handle.
	Close() error
}

// FilterOne runs filter and returns the first matching entry, closing
// the result iterator. It fails with a no-such-entry error when nothing
// matches.
func FilterOne(ctx context.Context, b Backend, filter *Filter, proj Projection) (*Entry, error) {
	entries, err := b.FilterEntries(ctx, filter, proj)
	if err != nil {
		return nil, err
	}
	defer entries.Close()

	entry, err := entries.Next()
	if err != nil {
		if errors.Is(err, iterator.ErrNoMoreData) {
			return nil, NewNoSuchEntryError()
		}
		return nil, err
	}
	return entry, nil
}
