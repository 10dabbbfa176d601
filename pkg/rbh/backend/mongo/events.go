package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rbh-project/rbh/internal/logger"
	"github.com/rbh-project/rbh/pkg/rbh"
	"github.com/rbh-project/rbh/pkg/rbh/iterator"
)

// Update drains the event stream, lowers it to write models and issues
// one ordered BulkWrite. Ordering inside the bulk follows stream order,
// which keeps the unlink/link pair of a link event adjacent and ordered;
// if the unlink half fails the ordered bulk aborts before the link half.
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

	models, err := lowerEvents(batch)
	if err != nil {
		return 0, err
	}

	_, err = b.entries.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		b.observer.RecordUpdate(Scheme, 0, time.Since(start), err)
		if isTransient(err) {
			b.observer.RecordRetry(Scheme)
			return 0, rbh.NewRetryLaterError(Scheme, err.Error())
		}
		return 0, rbh.NewBackendError(Scheme, err)
	}

	logger.Debug("applied bulk update",
		logger.KeyBackend, Scheme,
		logger.KeyFsname, b.fsname,
		logger.KeyEvents, len(batch),
		logger.KeyDuration, time.Since(start))
	b.observer.RecordUpdate(Scheme, len(batch), time.Since(start), nil)

	return len(batch), nil
}

// lowerEvents converts a batch of change events into write models, in
// stream order. Every lowering is idempotent on the store.
func lowerEvents(batch []*rbh.Event) ([]mongo.WriteModel, error) {
	models := make([]mongo.WriteModel, 0, len(batch))

	for _, event := range batch {
		idFilter := bson.D{{Key: docID, Value: binID(event.ID)}}

		switch event.Type {
		case rbh.EventDelete:
			models = append(models,
				mongo.NewDeleteOneModel().SetFilter(idFilter))

		case rbh.EventLink:
			// Atomic pair: first evict the {parent, name} edge from
			// whatever document currently holds it (linking over an
			// occupied path replaces its occupant), then add the edge,
			// creating the entry if missing.
			edge := nsEdgeDoc(event.ParentID, event.Name)
			occupied := bson.D{{Key: docNS, Value: bson.D{
				{Key: "$elemMatch", Value: edge},
			}}}
			pull := bson.D{{Key: "$pull", Value: bson.D{{Key: docNS, Value: edge}}}}
			push := bson.D{{Key: "$addToSet", Value: bson.D{{Key: docNS, Value: edge}}}}
			models = append(models,
				mongo.NewUpdateManyModel().SetFilter(occupied).SetUpdate(pull),
				mongo.NewUpdateOneModel().SetFilter(idFilter).SetUpdate(push).SetUpsert(true))

		case rbh.EventUnlink:
			// No upsert: unlinking an absent entry must not create it.
			pull := bson.D{{Key: "$pull", Value: bson.D{
				{Key: docNS, Value: nsEdgeDoc(event.ParentID, event.Name)},
			}}}
			models = append(models,
				mongo.NewUpdateOneModel().SetFilter(idFilter).SetUpdate(pull))

		case rbh.EventUpsert:
			sets := bson.D{}
			if event.Statx != nil {
				sets = statxSets(sets, event.Statx)
			}
			if event.Symlink != "" {
				sets = append(sets, bson.E{Key: docSymlink, Value: event.Symlink})
			}
			update := bson.D{}
			if len(sets) > 0 {
				update = append(update, bson.E{Key: "$set", Value: sets})
				if event.Statx != nil {
					// OR the advertised bits into the stored mask so a
					// partial upsert widens, never narrows, the record.
					update = append(update, bson.E{Key: "$bit", Value: bson.D{
						{Key: docStatx + ".mask", Value: bson.D{
							{Key: "or", Value: int64(event.Statx.Mask)},
						}},
					}})
				}
			} else {
				// A bare upsert still materializes the entry.
				update = append(update, bson.E{Key: "$setOnInsert", Value: bson.D{
					{Key: docID, Value: binID(event.ID)},
				}})
			}
			models = append(models,
				mongo.NewUpdateOneModel().SetFilter(idFilter).SetUpdate(update).SetUpsert(true))

		case rbh.EventNamespaceXattrs:
			model, err := xattrsModel(idFilter, docNsXattrs, event.Xattrs)
			if err != nil {
				return nil, err
			}
			models = append(models, model)

		case rbh.EventInodeXattrs:
			model, err := xattrsModel(idFilter, docXattrs, event.Xattrs)
			if err != nil {
				return nil, err
			}
			models = append(models, model)

		default:
			return nil, rbh.NewInvalidInputError("unknown event type %d", int(event.Type))
		}
	}
	return models, nil
}

// xattrsModel lowers an xattr merge to dotted $set assignments under the
// given top-level key.
func xattrsModel(idFilter bson.D, key string, xattrs rbh.XattrMap) (mongo.WriteModel, error) {
	sets := bson.D{}
	for k, v := range xattrs {
		bv, err := valueToBSON(v)
		if err != nil {
			return nil, rbh.NewInvalidInputError("%s", err.Error())
		}
		sets = append(sets, bson.E{Key: key + "." + k, Value: bv})
	}

	update := bson.D{}
	if len(sets) > 0 {
		update = append(update, bson.E{Key: "$set", Value: sets})
	} else {
		update = append(update, bson.E{Key: "$setOnInsert", Value: bson.D{{Key: key, Value: bson.D{}}}})
	}
	return mongo.NewUpdateOneModel().SetFilter(idFilter).SetUpdate(update).SetUpsert(true), nil
}

// isTransient recognizes driver failures the server labels transient;
// resubmitting the same batch may succeed.
func isTransient(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.HasErrorLabel("TransientTransactionError") {
		return true
	}
	var bulkErr mongo.BulkWriteException
	if errors.As(err, &bulkErr) {
		for _, label := range bulkErr.Labels {
			if label == "TransientTransactionError" {
				return true
			}
		}
	}
	return false
}
