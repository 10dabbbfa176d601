package badger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbh-project/rbh/pkg/rbh"
	"github.com/rbh-project/rbh/pkg/rbh/uri"
)

func parseURI(t *testing.T, raw string) *uri.URI {
	t.Helper()
	u, err := uri.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestConfigFromURI(t *testing.T) {
	cfg, err := configFromURI(parseURI(t, "badger:/var/lib/rbh/scratch?sync_writes=true"))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/rbh/scratch", cfg.Path)
	assert.True(t, cfg.SyncWrites)
	assert.False(t, cfg.InMemory)
}

func TestConfigFromURI_InMemory(t *testing.T) {
	cfg, err := configFromURI(parseURI(t, "badger:?in_memory=true"))
	require.NoError(t, err)
	assert.True(t, cfg.InMemory)
}

func TestConfigFromURI_MissingPath(t *testing.T) {
	_, err := configFromURI(parseURI(t, "badger:"))
	require.Error(t, err)
	assert.True(t, rbh.IsInvalidInput(err), "got %v", err)
}

func TestConfigFromURI_BadOption(t *testing.T) {
	_, err := configFromURI(parseURI(t, "badger:/data?sync_writes=maybe"))
	require.Error(t, err)
	assert.True(t, rbh.IsInvalidInput(err), "got %v", err)
}

// TestEncodingRoundTrip covers the JSON document codec, including
// tagged xattr values.
func TestEncodingRoundTrip(t *testing.T) {
	doc := &entryDoc{
		ID: []byte("entry-1"),
		Namespace: []nsEntryDoc{
			{ParentID: []byte("p1"), Name: "a"},
			{ParentID: []byte("p2"), Name: "b"},
		},
		Statx: &rbh.Statx{
			Mask: rbh.StatxType | rbh.StatxSize,
			Mode: rbh.TypeRegular,
			Size: 7,
		},
		Symlink: "/target",
		InodeXattrs: rbh.XattrMap{
			"color": rbh.StringValue("blue"),
			"raw":   rbh.BinaryValue([]byte{0, 1, 2}),
		},
	}

	data, err := encodeEntry(doc)
	require.NoError(t, err)

	decoded, err := decodeEntry(data)
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)
}
