package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rbh-project/rbh/pkg/rbh"
)

func TestTranslateFilter_NullMatchesAll(t *testing.T) {
	doc, err := translateFilter(nil)
	require.NoError(t, err)
	assert.Equal(t, bson.D{}, doc)
}

func TestTranslateFilter_NotNullMatchesNothing(t *testing.T) {
	doc, err := translateFilter(rbh.Not(nil))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$nor", Value: bson.A{bson.D{}}}}, doc)
}

func TestTranslateFilter_NameEquality(t *testing.T) {
	f := rbh.Equal(rbh.Field{ID: rbh.FieldName}, rbh.StringValue("foo.c"))
	doc, err := translateFilter(f)
	require.NoError(t, err)

	want := bson.D{{Key: "ns.name", Value: bson.D{{Key: "$eq", Value: "foo.c"}}}}
	assert.Equal(t, want, doc)
}

func TestTranslateFilter_IDBinary(t *testing.T) {
	f := rbh.Equal(rbh.Field{ID: rbh.FieldEntryID}, rbh.BinaryValue([]byte{1, 2}))
	doc, err := translateFilter(f)
	require.NoError(t, err)

	want := bson.D{{Key: "_id", Value: bson.D{{Key: "$eq", Value: primitive.Binary{Data: []byte{1, 2}}}}}}
	assert.Equal(t, want, doc)
}

func TestTranslateFilter_TimeOrdering(t *testing.T) {
	f := rbh.GreaterOrEqual(rbh.Field{ID: rbh.FieldMtime}, rbh.Int64Value(1700000000))
	doc, err := translateFilter(f)
	require.NoError(t, err)

	want := bson.D{{Key: "statx.mtime.sec", Value: bson.D{{Key: "$gte", Value: int64(1700000000)}}}}
	assert.Equal(t, want, doc)
}

func TestTranslateFilter_RegexCarriesOptions(t *testing.T) {
	f := rbh.Match(rbh.Field{ID: rbh.FieldName}, `\.c$`, rbh.RegexCaseInsensitive)
	doc, err := translateFilter(f)
	require.NoError(t, err)

	inner := doc[0].Value.(bson.D)
	assert.Equal(t, "$regex", inner[0].Key)
	assert.Equal(t, primitive.Regex{Pattern: `\.c$`, Options: "i"}, inner[0].Value)
}

func TestTranslateFilter_InSequence(t *testing.T) {
	f := rbh.In(rbh.Field{ID: rbh.FieldName}, rbh.StringValue("a"), rbh.StringValue("b"))
	doc, err := translateFilter(f)
	require.NoError(t, err)

	inner := doc[0].Value.(bson.D)
	assert.Equal(t, "$in", inner[0].Key)
	assert.Equal(t, bson.A{"a", "b"}, inner[0].Value)
}

func TestTranslateFilter_BitwiseFamily(t *testing.T) {
	ops := map[rbh.FilterOp]string{
		rbh.OpBitsAnySet:   "$bitsAnySet",
		rbh.OpBitsAllSet:   "$bitsAllSet",
		rbh.OpBitsAnyClear: "$bitsAnyClear",
		rbh.OpBitsAllClear: "$bitsAllClear",
	}
	for op, want := range ops {
		f := rbh.Compare(op, rbh.Field{ID: rbh.FieldMode}, rbh.UInt32Value(0o111))
		doc, err := translateFilter(f)
		require.NoError(t, err)

		inner := doc[0].Value.(bson.D)
		assert.Equal(t, want, inner[0].Key)
		assert.Equal(t, int64(0o111), inner[0].Value)
	}
}

// TestTranslateFilter_MapSubmap verifies that map equality lowers to
// per-key dotted $eq predicates, not whole-subdocument equality.
func TestTranslateFilter_MapSubmap(t *testing.T) {
	tags := rbh.Field{ID: rbh.FieldInodeXattr, Xattr: "tags"}

	f := rbh.Equal(tags, rbh.MapValue(map[string]rbh.Value{
		"a": rbh.Int64Value(1),
		"b": rbh.StringValue("x"),
	}))
	doc, err := translateFilter(f)
	require.NoError(t, err)

	want := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "xattrs.tags.a", Value: bson.D{{Key: "$eq", Value: int64(1)}}}},
		bson.D{{Key: "xattrs.tags.b", Value: bson.D{{Key: "$eq", Value: "x"}}}},
	}}}
	assert.Equal(t, want, doc)
}

func TestTranslateFilter_MapSubmapSingleKey(t *testing.T) {
	tags := rbh.Field{ID: rbh.FieldInodeXattr, Xattr: "tags"}

	f := rbh.Equal(tags, rbh.MapValue(map[string]rbh.Value{"a": rbh.Int64Value(1)}))
	doc, err := translateFilter(f)
	require.NoError(t, err)

	// A single key needs no $and wrapper.
	want := bson.D{{Key: "xattrs.tags.a", Value: bson.D{{Key: "$eq", Value: int64(1)}}}}
	assert.Equal(t, want, doc)
}

func TestTranslateFilter_MapSubmapEmpty(t *testing.T) {
	tags := rbh.Field{ID: rbh.FieldNamespaceXattr, Xattr: "tags"}

	f := rbh.Equal(tags, rbh.MapValue(nil))
	doc, err := translateFilter(f)
	require.NoError(t, err)

	// The empty submap only requires the stored value to be a map.
	want := bson.D{{Key: "ns_xattrs.tags", Value: bson.D{{Key: "$type", Value: "object"}}}}
	assert.Equal(t, want, doc)
}

func TestTranslateFilter_LogicalNesting(t *testing.T) {
	f := rbh.And(
		rbh.Equal(rbh.Field{ID: rbh.FieldName}, rbh.StringValue("x")),
		rbh.Not(rbh.Equal(rbh.Field{ID: rbh.FieldUID}, rbh.UInt32Value(0))),
	)
	doc, err := translateFilter(f)
	require.NoError(t, err)

	assert.Equal(t, "$and", doc[0].Key)
	children := doc[0].Value.(bson.A)
	require.Len(t, children, 2)
	assert.Equal(t, "$nor", children[1].(bson.D)[0].Key)
}

func TestTranslateFilter_XattrPaths(t *testing.T) {
	inode := rbh.Equal(rbh.Field{ID: rbh.FieldInodeXattr, Xattr: "color"}, rbh.StringValue("blue"))
	doc, err := translateFilter(inode)
	require.NoError(t, err)
	assert.Equal(t, "xattrs.color", doc[0].Key)

	ns := rbh.Equal(rbh.Field{ID: rbh.FieldNamespaceXattr, Xattr: "depth"}, rbh.Int64Value(1))
	doc, err = translateFilter(ns)
	require.NoError(t, err)
	assert.Equal(t, "ns_xattrs.depth", doc[0].Key)
}

func TestBuildPipeline_UnwindMatchProject(t *testing.T) {
	f := rbh.Equal(rbh.Field{ID: rbh.FieldName}, rbh.StringValue("x"))
	pipeline, err := buildPipeline(f, rbh.Projection{Entry: rbh.EntryID | rbh.EntryName})
	require.NoError(t, err)
	require.Len(t, pipeline, 3)

	assert.Equal(t, "$unwind", pipeline[0][0].Key)
	assert.Equal(t, "$ns", pipeline[0][0].Value)
	assert.Equal(t, "$match", pipeline[1][0].Key)
	assert.Equal(t, "$project", pipeline[2][0].Key)
}

func TestBuildProjection_MasksToInclusions(t *testing.T) {
	proj := buildProjection(rbh.Projection{
		Entry: rbh.EntryID | rbh.EntryName | rbh.EntryStatx,
		Statx: rbh.StatxSize | rbh.StatxMtime,
	})

	keys := docKeys(proj)
	assert.Contains(t, keys, "_id")
	assert.Contains(t, keys, "ns.name")
	assert.Contains(t, keys, "statx.size")
	assert.Contains(t, keys, "statx.mtime")
	assert.Contains(t, keys, "statx.mask")
	assert.NotContains(t, keys, "statx.uid")
	assert.NotContains(t, keys, "symlink")
	assert.NotContains(t, keys, "xattrs")
}

func TestBuildProjection_SuppressesID(t *testing.T) {
	proj := buildProjection(rbh.Projection{Entry: rbh.EntryName})
	assert.Equal(t, bson.E{Key: "_id", Value: 0}, proj[0])
}

func TestConfigFromURI(t *testing.T) {
	u := parseURI(t, "mongo://db.example:27017/scratch?connect_timeout=5s&max_pool_size=8")
	cfg, err := configFromURI(u)
	require.NoError(t, err)

	assert.Equal(t, "db.example:27017", cfg.Hosts)
	assert.Equal(t, "scratch", cfg.Fsname)
	assert.Equal(t, "5s", cfg.ConnectTimeout.String())
	assert.Equal(t, uint64(8), cfg.MaxPoolSize)
	assert.Equal(t, "mongodb://db.example:27017", cfg.connString())
}

func TestConfigFromURI_Opaque(t *testing.T) {
	cfg, err := configFromURI(parseURI(t, "mongo:scratch"))
	require.NoError(t, err)

	assert.Equal(t, "scratch", cfg.Fsname)
	assert.Empty(t, cfg.Hosts)
	assert.Equal(t, "mongodb://localhost:27017", cfg.connString())
}

func TestConfigFromURI_MissingFsname(t *testing.T) {
	_, err := configFromURI(parseURI(t, "mongo://host:27017/"))
	require.Error(t, err)
	assert.True(t, rbh.IsInvalidInput(err), "got %v", err)
}

func TestConfigFromURI_Credentials(t *testing.T) {
	cfg, err := configFromURI(parseURI(t, "mongo://user:pw@host:27017/fs"))
	require.NoError(t, err)
	assert.Equal(t, "mongodb://user:pw@host:27017", cfg.connString())
}
