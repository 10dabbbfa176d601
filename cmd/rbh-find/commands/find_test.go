package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbh-project/rbh/pkg/rbh"
	"github.com/rbh-project/rbh/pkg/rbh/backend/memory"
	"github.com/rbh-project/rbh/pkg/rbh/iterator"
)

func TestGlobToRegex(t *testing.T) {
	cases := map[string]string{
		"*.c":      `^.*\.c$`,
		"foo?":     `^foo.$`,
		"a+b":      `^a\+b$`,
		"[ab]*":    `^\[ab\].*$`,
		"plain":    `^plain$`,
		"dir/file": `^dir/file$`,
	}
	for glob, want := range cases {
		assert.Equal(t, want, globToRegex(glob), "glob %q", glob)
	}
}

func TestParseType(t *testing.T) {
	bits, err := parseType("f")
	require.NoError(t, err)
	assert.Equal(t, rbh.TypeRegular, bits)

	bits, err = parseType("d")
	require.NoError(t, err)
	assert.Equal(t, rbh.TypeDirectory, bits)

	_, err = parseType("x")
	assert.Error(t, err)
}

func TestParseSize(t *testing.T) {
	exact, err := parseSize("4096")
	require.NoError(t, err)
	assert.Equal(t, rbh.OpEqual, exact.Op)
	assert.Equal(t, uint64(4096), exact.Value.Uint)

	greater, err := parseSize("+100")
	require.NoError(t, err)
	assert.Equal(t, rbh.OpGreater, greater.Op)

	lower, err := parseSize("-100")
	require.NoError(t, err)
	assert.Equal(t, rbh.OpLess, lower.Op)

	_, err = parseSize("12kb")
	assert.Error(t, err)
}

func TestBuildFilter_NoFlagsIsNullFilter(t *testing.T) {
	filter, err := buildFilter(findFlags{uid: -1, gid: -1, newerThan: -1})
	require.NoError(t, err)
	assert.Nil(t, filter)
}

func TestBuildFilter_SinglePredicateUnwrapped(t *testing.T) {
	filter, err := buildFilter(findFlags{name: "*.c", uid: -1, gid: -1, newerThan: -1})
	require.NoError(t, err)
	require.NotNil(t, filter)
	assert.Equal(t, rbh.OpRegex, filter.Op)
}

// TestBuildFilter_AgainstBackend drives the built filter through a
// seeded in-memory backend, end to end.
func TestBuildFilter_AgainstBackend(t *testing.T) {
	backend := memory.New()
	defer backend.Close()

	rootID := rbh.ID("root")
	srcID := rbh.ID("src")
	mainID := rbh.ID("main")
	readmeID := rbh.ID("readme")

	dir := &rbh.Statx{Mask: rbh.StatxType | rbh.StatxMode, Mode: rbh.TypeDirectory | 0o755}
	code := &rbh.Statx{
		Mask: rbh.StatxType | rbh.StatxMode | rbh.StatxUID | rbh.StatxSize | rbh.StatxMtime,
		Mode: rbh.TypeRegular | 0o644, UID: 1000, Size: 2048,
		Mtime: rbh.Timestamp{Sec: 1700000010},
	}
	doc := &rbh.Statx{
		Mask: rbh.StatxType | rbh.StatxMode | rbh.StatxUID | rbh.StatxSize | rbh.StatxMtime,
		Mode: rbh.TypeRegular | 0o644, UID: 1000, Size: 100,
		Mtime: rbh.Timestamp{Sec: 1600000000},
	}

	events := []*rbh.Event{
		rbh.UpsertEvent(rootID, dir, ""),
		rbh.LinkEvent(rootID, nil, ""),
		rbh.UpsertEvent(srcID, dir, ""),
		rbh.LinkEvent(srcID, rootID, "src"),
		rbh.UpsertEvent(mainID, code, ""),
		rbh.LinkEvent(mainID, srcID, "main.c"),
		rbh.UpsertEvent(readmeID, doc, ""),
		rbh.LinkEvent(readmeID, rootID, "README"),
	}
	_, err := backend.Update(context.Background(), iterator.Slice(events))
	require.NoError(t, err)

	filter, err := buildFilter(findFlags{
		name:      "*.c",
		fileType:  "f",
		newerThan: 1700000000,
		uid:       -1,
		gid:       -1,
	})
	require.NoError(t, err)

	it, err := backend.FilterEntries(context.Background(), filter, findProjection)
	require.NoError(t, err)
	defer it.Close()

	entries, err := iterator.Collect(it)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "main.c", entries[0].Name)

	// Path reconstruction walks src back to the root.
	p := newPrinter(backend, false)
	path, err := p.path(context.Background(), entries[0])
	require.NoError(t, err)
	assert.Equal(t, "/src/main.c", path)
}
