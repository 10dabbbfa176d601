package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rbh-project/rbh/internal/logger"
	"github.com/rbh-project/rbh/pkg/rbh"
	"github.com/rbh-project/rbh/pkg/rbh/iterator"
)

// FilterEntries translates the filter to an aggregation pipeline and
// returns a lazy iterator over the server cursor. Closing the iterator
// closes the cursor, also mid-iteration.
func (b *Backend) FilterEntries(ctx context.Context, filter *rbh.Filter, proj rbh.Projection) (iterator.Iterator[*rbh.Entry], error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := rbh.Validate(filter); err != nil {
		return nil, err
	}

	pipeline, err := buildPipeline(filter, proj)
	if err != nil {
		return nil, err
	}

	logger.Debug("dispatching filter query",
		logger.KeyBackend, Scheme,
		logger.KeyFsname, b.fsname,
		logger.KeyFilter, filter.String())

	cursor, err := b.entries.Aggregate(ctx, pipeline)
	if err != nil {
		b.observer.RecordQuery(Scheme, time.Since(start), err)
		return nil, rbh.NewBackendError(Scheme, err)
	}
	b.observer.RecordQuery(Scheme, time.Since(start), nil)

	return &cursorIterator{
		backend: b,
		ctx:     ctx,
		cursor:  cursor,
		proj:    proj,
	}, nil
}

// cursorIterator adapts a driver cursor to the iterator contract.
type cursorIterator struct {
	backend *Backend
	ctx     context.Context
	cursor  *mongo.Cursor
	proj    rbh.Projection
	closed  bool
}

func (c *cursorIterator) Next() (*rbh.Entry, error) {
	if c.closed {
		return nil, iterator.ErrNoMoreData
	}

	if !c.cursor.Next(c.ctx) {
		if err := c.cursor.Err(); err != nil && !errors.Is(err, context.Canceled) {
			return nil, rbh.NewBackendError(Scheme, err)
		}
		return nil, iterator.ErrNoMoreData
	}

	var doc resultDoc
	if err := c.cursor.Decode(&doc); err != nil {
		return nil, rbh.NewBackendError(Scheme, err)
	}

	entry, err := doc.entry()
	if err != nil {
		return nil, rbh.NewBackendError(Scheme, err)
	}

	c.backend.observer.RecordEntries(Scheme, 1)
	// Re-project client-side: the server projection trims payload, the
	// masks in the result must still be exactly what the caller asked.
	return entry.Project(c.proj), nil
}

func (c *cursorIterator) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	// Use a fresh context so an already-cancelled query context still
	// lets the cursor release its server resources.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.cursor.Close(ctx); err != nil {
		return rbh.NewBackendError(Scheme, err)
	}
	return nil
}
