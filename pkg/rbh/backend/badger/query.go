package badger

import (
	"context"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/rbh-project/rbh/pkg/rbh"
	"github.com/rbh-project/rbh/pkg/rbh/iterator"
)

// FilterEntries scans the entry namespace lazily, unwinding each
// document's namespace edges and matching the filter per edge. The
// returned iterator holds a read transaction open until closed; closing
// it mid-scan discards the transaction without leaking.
func (b *Backend) FilterEntries(ctx context.Context, filter *rbh.Filter, proj rbh.Projection) (iterator.Iterator[*rbh.Entry], error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := rbh.Validate(filter); err != nil {
		return nil, err
	}

	txn := b.db.NewTransaction(false)
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = []byte(prefixEntry)
	it := txn.NewIterator(opts)
	it.Rewind()

	b.observer.RecordQuery(Scheme, time.Since(start), nil)

	return &queryIterator{
		backend: b,
		txn:     txn,
		it:      it,
		filter:  filter,
		proj:    proj,
	}, nil
}

// queryIterator walks the entry prefix, yielding one projected entry per
// matching namespace edge.
type queryIterator struct {
	backend *Backend
	txn     *badgerdb.Txn
	it      *badgerdb.Iterator
	filter  *rbh.Filter
	proj    rbh.Projection

	// pending holds the not-yet-yielded matches of the current document;
	// a hard-linked entry can match through several edges.
	pending []*rbh.Entry
	closed  bool
}

func (q *queryIterator) Next() (*rbh.Entry, error) {
	if q.closed {
		return nil, iterator.ErrNoMoreData
	}

	for {
		if len(q.pending) > 0 {
			entry := q.pending[0]
			q.pending = q.pending[1:]
			q.backend.observer.RecordEntries(Scheme, 1)
			return entry, nil
		}

		if !q.it.Valid() {
			return nil, iterator.ErrNoMoreData
		}

		item := q.it.Item()
		var doc *entryDoc
		err := item.Value(func(val []byte) error {
			var derr error
			doc, derr = decodeEntry(val)
			return derr
		})
		q.it.Next()
		if err != nil {
			return nil, rbh.NewBackendError(Scheme, err)
		}

		for _, edge := range doc.edges() {
			entry := doc.entry(edge)
			if q.filter.Matches(entry, edge) {
				q.pending = append(q.pending, entry.Project(q.proj))
			}
		}
	}
}

func (q *queryIterator) Close() error {
	if q.closed {
		return nil
	}
	q.closed = true
	q.it.Close()
	q.txn.Discard()
	return nil
}
