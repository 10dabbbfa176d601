package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rbh-project/rbh/pkg/rbh"
)

var (
	testID     = rbh.ID("id-1")
	testParent = rbh.ID("parent-1")
)

func TestLowerEvents_Delete(t *testing.T) {
	models, err := lowerEvents([]*rbh.Event{rbh.DeleteEvent(testID)})
	require.NoError(t, err)
	require.Len(t, models, 1)

	del, ok := models[0].(*mongo.DeleteOneModel)
	require.True(t, ok)
	assert.Equal(t, bson.D{{Key: "_id", Value: primitive.Binary{Data: testID}}}, del.Filter)
}

// TestLowerEvents_LinkPair verifies the atomic pair: the idempotent
// unlink precedes the upserting link, adjacent and in order. The unlink
// half is filtered by the edge, not by the target id, so it evicts the
// slot's current occupant whichever document that is.
func TestLowerEvents_LinkPair(t *testing.T) {
	models, err := lowerEvents([]*rbh.Event{rbh.LinkEvent(testID, testParent, "a")})
	require.NoError(t, err)
	require.Len(t, models, 2)

	pull, ok := models[0].(*mongo.UpdateManyModel)
	require.True(t, ok)
	assert.Nil(t, pull.Upsert)
	assert.Equal(t, "$pull", pull.Update.(bson.D)[0].Key)

	filter := pull.Filter.(bson.D)
	assert.Equal(t, "ns", filter[0].Key)
	assert.Equal(t, "$elemMatch", filter[0].Value.(bson.D)[0].Key)

	push, ok := models[1].(*mongo.UpdateOneModel)
	require.True(t, ok)
	require.NotNil(t, push.Upsert)
	assert.True(t, *push.Upsert)
	assert.Equal(t, "$addToSet", push.Update.(bson.D)[0].Key)
	assert.Equal(t, bson.D{{Key: "_id", Value: primitive.Binary{Data: testID}}}, push.Filter)
}

// TestLowerEvents_UnlinkNoUpsert verifies that unlink never creates the
// entry.
func TestLowerEvents_UnlinkNoUpsert(t *testing.T) {
	models, err := lowerEvents([]*rbh.Event{rbh.UnlinkEvent(testID, testParent, "a")})
	require.NoError(t, err)
	require.Len(t, models, 1)

	pull, ok := models[0].(*mongo.UpdateOneModel)
	require.True(t, ok)
	assert.Nil(t, pull.Upsert)
	assert.Equal(t, "$pull", pull.Update.(bson.D)[0].Key)
}

func TestLowerEvents_UpsertSetsMaskedFieldsOnly(t *testing.T) {
	statx := &rbh.Statx{
		Mask: rbh.StatxSize | rbh.StatxUID,
		Size: 42,
		UID:  1000,
		GID:  2000, // outside the mask, must not be written
	}
	models, err := lowerEvents([]*rbh.Event{rbh.UpsertEvent(testID, statx, "")})
	require.NoError(t, err)
	require.Len(t, models, 1)

	up, ok := models[0].(*mongo.UpdateOneModel)
	require.True(t, ok)
	require.NotNil(t, up.Upsert)
	assert.True(t, *up.Upsert)

	update := up.Update.(bson.D)
	sets := findKey(t, update, "$set").(bson.D)
	keys := docKeys(sets)
	assert.ElementsMatch(t, []string{"statx.size", "statx.uid"}, keys)

	// The stored mask widens via $bit or.
	bit := findKey(t, update, "$bit").(bson.D)
	assert.Equal(t, "statx.mask", bit[0].Key)
}

func TestLowerEvents_UpsertSymlink(t *testing.T) {
	statx := &rbh.Statx{Mask: rbh.StatxType, Mode: rbh.TypeSymlink}
	models, err := lowerEvents([]*rbh.Event{rbh.UpsertEvent(testID, statx, "/target")})
	require.NoError(t, err)

	up := models[0].(*mongo.UpdateOneModel)
	sets := findKey(t, up.Update.(bson.D), "$set").(bson.D)
	assert.Contains(t, docKeys(sets), "symlink")
}

func TestLowerEvents_XattrsDottedSets(t *testing.T) {
	xattrs := rbh.XattrMap{"color": rbh.StringValue("blue")}
	models, err := lowerEvents([]*rbh.Event{rbh.InodeXattrsEvent(testID, xattrs)})
	require.NoError(t, err)
	require.Len(t, models, 1)

	up := models[0].(*mongo.UpdateOneModel)
	require.NotNil(t, up.Upsert)
	sets := findKey(t, up.Update.(bson.D), "$set").(bson.D)
	assert.Equal(t, "xattrs.color", sets[0].Key)
	assert.Equal(t, "blue", sets[0].Value)
}

func TestLowerEvents_NamespaceXattrsSeparateKey(t *testing.T) {
	xattrs := rbh.XattrMap{"depth": rbh.Int64Value(3)}
	models, err := lowerEvents([]*rbh.Event{rbh.NamespaceXattrsEvent(testID, xattrs)})
	require.NoError(t, err)

	up := models[0].(*mongo.UpdateOneModel)
	sets := findKey(t, up.Update.(bson.D), "$set").(bson.D)
	assert.Equal(t, "ns_xattrs.depth", sets[0].Key)
}

// TestLowerEvents_StreamOrderPreserved verifies that models come out in
// event stream order.
func TestLowerEvents_StreamOrderPreserved(t *testing.T) {
	events := []*rbh.Event{
		rbh.LinkEvent(testID, testParent, "a"),
		rbh.UnlinkEvent(testID, testParent, "a"),
		rbh.DeleteEvent(testID),
	}
	models, err := lowerEvents(events)
	require.NoError(t, err)
	require.Len(t, models, 4) // link expands to its pair

	_, isEvict := models[0].(*mongo.UpdateManyModel)
	_, isLink := models[1].(*mongo.UpdateOneModel)
	_, isUnlink := models[2].(*mongo.UpdateOneModel)
	_, isDelete := models[3].(*mongo.DeleteOneModel)
	assert.True(t, isEvict && isLink && isUnlink && isDelete)
}

// findKey returns the value under key in doc, failing the test if absent.
func findKey(t *testing.T, doc bson.D, key string) any {
	t.Helper()
	for _, elem := range doc {
		if elem.Key == key {
			return elem.Value
		}
	}
	t.Fatalf("key %q not found in %v", key, doc)
	return nil
}

func docKeys(doc bson.D) []string {
	keys := make([]string, len(doc))
	for i, elem := range doc {
		keys[i] = elem.Key
	}
	return keys
}
