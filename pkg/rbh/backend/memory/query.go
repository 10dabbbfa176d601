package memory

import (
	"context"
	"time"

	"github.com/rbh-project/rbh/pkg/rbh"
	"github.com/rbh-project/rbh/pkg/rbh/iterator"
)

// FilterEntries evaluates the filter against a snapshot of the store.
//
// The namespace is unwound first: each entry is tested and emitted once
// per namespace edge, with ParentID and Name bound to the edge. Entries
// that have lost every edge (unlinked but not yet deleted) are not
// reachable through queries.
func (b *Backend) FilterEntries(ctx context.Context, filter *rbh.Filter, proj rbh.Projection) (iterator.Iterator[*rbh.Entry], error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := rbh.Validate(filter); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errClosed()
	}

	var results []*rbh.Entry
	for _, rec := range b.entries {
		for _, edge := range rec.namespace {
			entry := rec.entry(edge)
			if filter.Matches(entry, edge) {
				results = append(results, entry.Project(proj))
			}
		}
	}

	b.observer.RecordQuery(Scheme, time.Since(start), nil)
	b.observer.RecordEntries(Scheme, len(results))

	return iterator.Slice(results), nil
}
