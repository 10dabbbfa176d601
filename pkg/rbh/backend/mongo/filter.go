package mongo

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rbh-project/rbh/pkg/rbh"
)

// ============================================================================
// Filter Translation
// ============================================================================
//
// Queries run as an aggregation pipeline:
//
//	{$unwind: "$ns"}  — one row per namespace edge
//	{$match:  <translated filter>}
//	{$project: <masks>}
//
// The unwind is what lets parent_id and name predicates address a single
// edge of a hard-linked entry; entries are therefore emitted once per
// edge, matching the reference semantics.

// buildPipeline assembles the aggregation pipeline for filter and proj.
func buildPipeline(filter *rbh.Filter, proj rbh.Projection) (mongo.Pipeline, error) {
	match, err := translateFilter(filter)
	if err != nil {
		return nil, err
	}

	return mongo.Pipeline{
		{{Key: "$unwind", Value: "$" + docNS}},
		{{Key: "$match", Value: match}},
		{{Key: "$project", Value: buildProjection(proj)}},
	}, nil
}

// translateFilter lowers a validated filter AST to a $match document.
// The nil filter becomes the empty document, which matches everything.
func translateFilter(f *rbh.Filter) (bson.D, error) {
	if f == nil {
		return bson.D{}, nil
	}

	if f.Op.IsComparison() {
		return translateComparison(f)
	}

	switch f.Op {
	case rbh.OpAnd, rbh.OpOr:
		key := "$and"
		if f.Op == rbh.OpOr {
			key = "$or"
		}
		children := make(bson.A, len(f.Children))
		for i, child := range f.Children {
			doc, err := translateFilter(child)
			if err != nil {
				return nil, err
			}
			children[i] = doc
		}
		return bson.D{{Key: key, Value: children}}, nil

	case rbh.OpNot:
		// $nor negates an arbitrary match document, including the empty
		// one: not-null matches nothing.
		doc, err := translateFilter(f.Children[0])
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$nor", Value: bson.A{doc}}}, nil
	}

	return nil, rbh.NewInvalidInputError("unknown filter operator %d", int(f.Op))
}

func translateComparison(f *rbh.Filter) (bson.D, error) {
	field, err := fieldPath(f.Field)
	if err != nil {
		return nil, err
	}

	// '=' on a map value is a submap test, not whole-subdocument
	// equality: it lowers to a conjunction of per-key predicates.
	if f.Op == rbh.OpEqual && f.Value.Kind == rbh.ValueMap {
		return translateSubmap(field, f.Value)
	}

	value, err := comparisonValue(f)
	if err != nil {
		return nil, err
	}

	op, ok := comparisonOps[f.Op]
	if !ok {
		return nil, rbh.NewInvalidInputError("untranslatable operator %s", f.Op)
	}

	return bson.D{{Key: field, Value: bson.D{{Key: op, Value: value}}}}, nil
}

// translateSubmap lowers map equality to one dotted-path $eq per key,
// mirroring the reference evaluator: every key of the value must be
// present in the stored map with an equal value, extra stored keys are
// fine. A server-side $eq on the whole subdocument would demand exact,
// field-order-sensitive equality instead.
func translateSubmap(field string, v rbh.Value) (bson.D, error) {
	if len(v.Map) == 0 {
		// The empty submap matches any stored map: only presence counts.
		return bson.D{{Key: field, Value: bson.D{{Key: "$type", Value: "object"}}}}, nil
	}

	keys := make([]string, 0, len(v.Map))
	for k := range v.Map {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conjunction := make(bson.A, 0, len(keys))
	for _, k := range keys {
		bv, err := valueToBSON(v.Map[k])
		if err != nil {
			return nil, rbh.NewInvalidInputError("%s", err.Error())
		}
		conjunction = append(conjunction, bson.D{
			{Key: field + "." + k, Value: bson.D{{Key: "$eq", Value: bv}}},
		})
	}

	if len(conjunction) == 1 {
		return conjunction[0].(bson.D), nil
	}
	return bson.D{{Key: "$and", Value: conjunction}}, nil
}

// comparisonOps maps filter operators to their query operators. The
// bitwise family maps directly: the server implements the same four
// predicates over integer bit-vectors.
var comparisonOps = map[rbh.FilterOp]string{
	rbh.OpEqual:          "$eq",
	rbh.OpLess:           "$lt",
	rbh.OpLessOrEqual:    "$lte",
	rbh.OpGreater:        "$gt",
	rbh.OpGreaterOrEqual: "$gte",
	rbh.OpRegex:          "$regex",
	rbh.OpIn:             "$in",
	rbh.OpBitsAnySet:     "$bitsAnySet",
	rbh.OpBitsAllSet:     "$bitsAllSet",
	rbh.OpBitsAnyClear:   "$bitsAnyClear",
	rbh.OpBitsAllClear:   "$bitsAllClear",
}

func comparisonValue(f *rbh.Filter) (any, error) {
	v, err := valueToBSON(f.Value)
	if err != nil {
		return nil, rbh.NewInvalidInputError("%s", err.Error())
	}
	return v, nil
}

// fieldPath maps a filter field to its document path after the unwind.
func fieldPath(field rbh.Field) (string, error) {
	switch field.ID {
	case rbh.FieldEntryID:
		return docID, nil
	case rbh.FieldParentID:
		return docNS + "." + docNSParent, nil
	case rbh.FieldName:
		return docNS + "." + docNSName, nil
	case rbh.FieldType:
		return docStatx + ".type", nil
	case rbh.FieldMode:
		return docStatx + ".mode", nil
	case rbh.FieldNlink:
		return docStatx + ".nlink", nil
	case rbh.FieldUID:
		return docStatx + ".uid", nil
	case rbh.FieldGID:
		return docStatx + ".gid", nil
	case rbh.FieldSize:
		return docStatx + ".size", nil
	case rbh.FieldIno:
		return docStatx + ".ino", nil
	case rbh.FieldAtime:
		return docStatx + ".atime.sec", nil
	case rbh.FieldBtime:
		return docStatx + ".btime.sec", nil
	case rbh.FieldCtime:
		return docStatx + ".ctime.sec", nil
	case rbh.FieldMtime:
		return docStatx + ".mtime.sec", nil
	case rbh.FieldSymlink:
		return docSymlink, nil
	case rbh.FieldNamespaceXattr:
		return docNsXattrs + "." + field.Xattr, nil
	case rbh.FieldInodeXattr:
		return docXattrs + "." + field.Xattr, nil
	}
	return "", rbh.NewInvalidInputError("untranslatable field %s", field)
}

// buildProjection lowers the caller's masks to a $project document.
// Fields outside the masks are omitted from results.
func buildProjection(proj rbh.Projection) bson.D {
	out := bson.D{}

	if proj.Entry.Has(rbh.EntryID) {
		out = append(out, bson.E{Key: docID, Value: 1})
	} else {
		out = append(out, bson.E{Key: docID, Value: 0})
	}
	if proj.Entry.Has(rbh.EntryParentID) || proj.Entry.Has(rbh.EntryNamespace) {
		out = append(out, bson.E{Key: docNS + "." + docNSParent, Value: 1})
	}
	if proj.Entry.Has(rbh.EntryName) || proj.Entry.Has(rbh.EntryNamespace) {
		out = append(out, bson.E{Key: docNS + "." + docNSName, Value: 1})
	}
	if proj.Entry.Has(rbh.EntrySymlink) {
		out = append(out, bson.E{Key: docSymlink, Value: 1})
	}
	if proj.Entry.Has(rbh.EntryNamespaceXattrs) {
		out = append(out, bson.E{Key: docNsXattrs, Value: 1})
	}
	if proj.Entry.Has(rbh.EntryInodeXattrs) {
		out = append(out, bson.E{Key: docXattrs, Value: 1})
	}
	if proj.Entry.Has(rbh.EntryStatx) {
		out = append(out, statxProjection(proj.Statx)...)
	}
	return out
}

func statxProjection(mask rbh.StatxMask) bson.D {
	out := bson.D{{Key: docStatx + ".mask", Value: 1}}

	include := func(name string, bit rbh.StatxMask) {
		if mask.Has(bit) {
			out = append(out, bson.E{Key: docStatx + "." + name, Value: 1})
		}
	}

	include("type", rbh.StatxType)
	include("mode", rbh.StatxMode)
	include("nlink", rbh.StatxNlink)
	include("uid", rbh.StatxUID)
	include("gid", rbh.StatxGID)
	include("atime", rbh.StatxAtime)
	include("mtime", rbh.StatxMtime)
	include("ctime", rbh.StatxCtime)
	include("btime", rbh.StatxBtime)
	include("ino", rbh.StatxIno)
	include("size", rbh.StatxSize)
	include("blocks", rbh.StatxBlocks)
	include("blksize", rbh.StatxBlksize)
	include("rdev_major", rbh.StatxRdev)
	include("rdev_minor", rbh.StatxRdev)
	include("dev_major", rbh.StatxDev)
	include("dev_minor", rbh.StatxDev)
	return out
}
