package memory

import (
	"context"
	"time"

	"github.com/rbh-project/rbh/internal/logger"
	"github.com/rbh-project/rbh/pkg/rbh"
	"github.com/rbh-project/rbh/pkg/rbh/iterator"
)

// Update drains the event stream and applies it as one batch, in stream
// order, under a single lock acquisition. The iterator is consumed and
// closed whether or not the batch applies.
func (b *Backend) Update(ctx context.Context, events iterator.Iterator[*rbh.Event]) (int, error) {
	start := time.Now()
	defer events.Close()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// Collect first so an iterator failure surfaces before any mutation.
	batch, err := iterator.Collect(events)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, errClosed()
	}

	for _, event := range batch {
		b.applyEvent(event)
	}

	logger.Debug("applied bulk update",
		logger.KeyBackend, Scheme,
		logger.KeyEvents, len(batch),
		logger.KeyDuration, time.Since(start))
	b.observer.RecordUpdate(Scheme, len(batch), time.Since(start), nil)

	return len(batch), nil
}

// applyEvent applies one change event. Mutations are idempotent: a
// repeated delete or link leaves the store unchanged.
func (b *Backend) applyEvent(event *rbh.Event) {
	key := string(event.ID)

	switch event.Type {
	case rbh.EventDelete:
		delete(b.entries, key)

	case rbh.EventLink:
		// Replace semantics: a {parent, name} slot has one occupant, so
		// evict the edge from whichever entry currently holds it, not
		// just from the link target.
		for _, other := range b.entries {
			other.removeEdge(event.ParentID, event.Name)
		}
		rec := b.getOrCreate(event.ID)
		rec.namespace = append(rec.namespace, rbh.NamespaceEntry{
			ParentID: append(rbh.ID(nil), event.ParentID...),
			Name:     event.Name,
		})

	case rbh.EventUnlink:
		// Unlink never creates the entry.
		if rec, ok := b.entries[key]; ok {
			rec.removeEdge(event.ParentID, event.Name)
		}

	case rbh.EventUpsert:
		rec := b.getOrCreate(event.ID)
		if event.Statx != nil {
			if rec.statx == nil {
				rec.statx = &rbh.Statx{}
			}
			rec.statx.Merge(event.Statx)
		}
		if event.Symlink != "" {
			rec.symlink = event.Symlink
		}

	case rbh.EventNamespaceXattrs:
		rec := b.getOrCreate(event.ID)
		if rec.nsXattrs == nil {
			rec.nsXattrs = make(rbh.XattrMap, len(event.Xattrs))
		}
		for k, v := range event.Xattrs {
			rec.nsXattrs[k] = v.Clone()
		}

	case rbh.EventInodeXattrs:
		rec := b.getOrCreate(event.ID)
		if rec.inodeXattrs == nil {
			rec.inodeXattrs = make(rbh.XattrMap, len(event.Xattrs))
		}
		for k, v := range event.Xattrs {
			rec.inodeXattrs[k] = v.Clone()
		}
	}
}

func (b *Backend) getOrCreate(id rbh.ID) *entryRecord {
	key := string(id)
	rec, ok := b.entries[key]
	if !ok {
		rec = &entryRecord{id: append(rbh.ID(nil), id...)}
		b.entries[key] = rec
	}
	return rec
}

func (rec *entryRecord) removeEdge(parentID rbh.ID, name string) {
	for i, edge := range rec.namespace {
		if edge.ParentID.Equal(parentID) && edge.Name == name {
			rec.namespace = append(rec.namespace[:i], rec.namespace[i+1:]...)
			return
		}
	}
}
