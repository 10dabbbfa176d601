package rbh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntry_ProjectBoundsFields(t *testing.T) {
	entry, _ := testEntry()

	projected := entry.Project(Projection{
		Entry: EntryID | EntryName | EntryStatx,
		Statx: StatxSize,
	})

	assert.Equal(t, entry.ID, projected.ID)
	assert.Equal(t, "foo.c", projected.Name)
	assert.Empty(t, projected.ParentID)
	assert.Nil(t, projected.Namespace)
	assert.Nil(t, projected.InodeXattrs)

	require.NotNil(t, projected.Statx)
	assert.Equal(t, uint64(4096), projected.Statx.Size)
	assert.Equal(t, uint32(0), projected.Statx.UID)
	assert.True(t, projected.Statx.Mask.Has(StatxSize))
	assert.False(t, projected.Statx.Mask.Has(StatxUID))
}

func TestEntry_ProjectIsACopy(t *testing.T) {
	entry, _ := testEntry()

	projected := entry.Project(Projection{Entry: EntryAll, Statx: StatxAll})
	projected.ID[0] = 'X'
	projected.Statx.Size = 1

	assert.Equal(t, ID("entry-1"), entry.ID)
	assert.Equal(t, uint64(4096), entry.Statx.Size)
}

func TestStatx_MergeWidens(t *testing.T) {
	stored := &Statx{
		Mask: StatxSize | StatxMtime,
		Size: 100,
		Mtime: Timestamp{Sec: 1700000000},
	}

	update := &Statx{Mask: StatxUID | StatxSize, UID: 42, Size: 200}
	stored.Merge(update)

	assert.Equal(t, uint64(200), stored.Size)
	assert.Equal(t, uint32(42), stored.UID)
	assert.Equal(t, int64(1700000000), stored.Mtime.Sec)
	assert.True(t, stored.Mask.Has(StatxSize|StatxMtime|StatxUID))
}

func TestStatx_MergeKeepsTypeAndModeSeparate(t *testing.T) {
	stored := &Statx{Mask: StatxType | StatxMode, Mode: TypeRegular | 0o644}

	// A mode-only update must not clobber the type bits.
	stored.Merge(&Statx{Mask: StatxMode, Mode: 0o600})
	assert.Equal(t, TypeRegular, stored.Type())
	assert.Equal(t, uint32(0o600), stored.Mode&^ModeTypeMask)

	// A type-only update must not clobber the permission bits.
	stored.Merge(&Statx{Mask: StatxType, Mode: TypeSymlink})
	assert.Equal(t, TypeSymlink, stored.Type())
	assert.Equal(t, uint32(0o600), stored.Mode&^ModeTypeMask)
}

func TestID_Root(t *testing.T) {
	assert.True(t, ID(nil).IsRoot())
	assert.True(t, ID{}.IsRoot())
	assert.False(t, ID("x").IsRoot())
	assert.True(t, ID(nil).Equal(ID{}))
}
