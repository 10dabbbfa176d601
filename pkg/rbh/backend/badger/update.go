package badger

import (
	"context"
	"errors"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/rbh-project/rbh/internal/logger"
	"github.com/rbh-project/rbh/pkg/rbh"
	"github.com/rbh-project/rbh/pkg/rbh/iterator"
)

// Update drains the event stream and applies it inside one read-write
// transaction, in stream order. A conflicting concurrent transaction is
// a transient condition: the batch is untouched and the caller may
// resubmit it.
func (b *Backend) Update(ctx context.Context, events iterator.Iterator[*rbh.Event]) (int, error) {
	start := time.Now()
	defer events.Close()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	batch, err := iterator.Collect(events)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	err = b.db.Update(func(txn *badgerdb.Txn) error {
		for _, event := range batch {
			if err := applyEvent(txn, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.observer.RecordUpdate(Scheme, 0, time.Since(start), err)
		if errors.Is(err, badgerdb.ErrConflict) {
			b.observer.RecordRetry(Scheme)
			return 0, rbh.NewRetryLaterError(Scheme, err.Error())
		}
		return 0, rbh.NewBackendError(Scheme, err)
	}

	logger.Debug("applied bulk update",
		logger.KeyBackend, Scheme,
		logger.KeyEvents, len(batch),
		logger.KeyDuration, time.Since(start))
	b.observer.RecordUpdate(Scheme, len(batch), time.Since(start), nil)

	return len(batch), nil
}

// applyEvent lowers one change event to a get-modify-set of the entry
// document, keeping the edge index in step.
func applyEvent(txn *badgerdb.Txn, event *rbh.Event) error {
	key := keyEntry(event.ID)

	if event.Type == rbh.EventDelete {
		// Deleting an absent entry is a no-op, which gives the required
		// idempotence; a present entry surrenders its slots first.
		doc, err := loadEntry(txn, key)
		if err != nil {
			return err
		}
		if doc == nil {
			return nil
		}
		for _, edge := range doc.Namespace {
			if err := dropEdgeIndex(txn, edge.ParentID, edge.Name, event.ID); err != nil {
				return err
			}
		}
		return txn.Delete(key)
	}

	if event.Type == rbh.EventLink {
		// Replace semantics: the slot has one occupant, so the edge is
		// evicted from whichever entry currently holds it before the
		// link target claims it.
		if err := evictOccupant(txn, event.ParentID, event.Name); err != nil {
			return err
		}
	}

	doc, err := loadEntry(txn, key)
	if err != nil {
		return err
	}

	switch event.Type {
	case rbh.EventLink:
		if doc == nil {
			doc = &entryDoc{ID: event.ID}
		}
		removeEdge(doc, event.ParentID, event.Name)
		doc.Namespace = append(doc.Namespace, nsEntryDoc{
			ParentID: event.ParentID,
			Name:     event.Name,
		})
		if err := txn.Set(keyEdge(event.ParentID, event.Name), event.ID); err != nil {
			return err
		}

	case rbh.EventUnlink:
		// Unlink never creates the entry.
		if doc == nil {
			return nil
		}
		removeEdge(doc, event.ParentID, event.Name)
		if err := dropEdgeIndex(txn, event.ParentID, event.Name, event.ID); err != nil {
			return err
		}

	case rbh.EventUpsert:
		if doc == nil {
			doc = &entryDoc{ID: event.ID}
		}
		if event.Statx != nil {
			if doc.Statx == nil {
				doc.Statx = &rbh.Statx{}
			}
			doc.Statx.Merge(event.Statx)
		}
		if event.Symlink != "" {
			doc.Symlink = event.Symlink
		}

	case rbh.EventNamespaceXattrs:
		if doc == nil {
			doc = &entryDoc{ID: event.ID}
		}
		if doc.NsXattrs == nil {
			doc.NsXattrs = make(rbh.XattrMap, len(event.Xattrs))
		}
		for k, v := range event.Xattrs {
			doc.NsXattrs[k] = v
		}

	case rbh.EventInodeXattrs:
		if doc == nil {
			doc = &entryDoc{ID: event.ID}
		}
		if doc.InodeXattrs == nil {
			doc.InodeXattrs = make(rbh.XattrMap, len(event.Xattrs))
		}
		for k, v := range event.Xattrs {
			doc.InodeXattrs[k] = v
		}
	}

	data, err := encodeEntry(doc)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// loadEntry fetches and decodes an entry document, or nil if absent.
func loadEntry(txn *badgerdb.Txn, key []byte) (*entryDoc, error) {
	item, err := txn.Get(key)
	if err == badgerdb.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var doc *entryDoc
	err = item.Value(func(val []byte) error {
		doc, err = decodeEntry(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func removeEdge(doc *entryDoc, parentID rbh.ID, name string) {
	for i, edge := range doc.Namespace {
		if rbh.ID(edge.ParentID).Equal(parentID) && edge.Name == name {
			doc.Namespace = append(doc.Namespace[:i], doc.Namespace[i+1:]...)
			return
		}
	}
}

// evictOccupant resolves the {parent, name} slot through the edge index
// and removes the edge from the entry holding it. The entry itself
// stays; only a delete event removes entries.
func evictOccupant(txn *badgerdb.Txn, parentID rbh.ID, name string) error {
	item, err := txn.Get(keyEdge(parentID, name))
	if err == badgerdb.ErrKeyNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	var ownerID rbh.ID
	if err := item.Value(func(val []byte) error {
		ownerID = append(rbh.ID(nil), val...)
		return nil
	}); err != nil {
		return err
	}

	ownerKey := keyEntry(ownerID)
	doc, err := loadEntry(txn, ownerKey)
	if err != nil || doc == nil {
		return err
	}
	removeEdge(doc, parentID, name)

	data, err := encodeEntry(doc)
	if err != nil {
		return err
	}
	return txn.Set(ownerKey, data)
}

// dropEdgeIndex deletes the slot's index key, but only if it still
// points at id: another entry may have claimed the slot since.
func dropEdgeIndex(txn *badgerdb.Txn, parentID rbh.ID, name string, id rbh.ID) error {
	edgeKey := keyEdge(parentID, name)

	item, err := txn.Get(edgeKey)
	if err == badgerdb.ErrKeyNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	mine := false
	if err := item.Value(func(val []byte) error {
		mine = rbh.ID(val).Equal(id)
		return nil
	}); err != nil {
		return err
	}
	if !mine {
		return nil
	}
	return txn.Delete(edgeKey)
}
