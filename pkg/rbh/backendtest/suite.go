package backendtest

import (
	"context"
	"testing"

	"github.com/rbh-project/rbh/pkg/rbh"
	"github.com/rbh-project/rbh/pkg/rbh/iterator"
)

// BackendFactory creates a fresh backend instance for each test. The
// factory receives *testing.T so it can use t.TempDir() for backends
// that need filesystem paths and t.Cleanup() for teardown.
type BackendFactory func(t *testing.T) rbh.Backend

// RunConformanceSuite runs the full conformance test suite against the
// provided backend factory. Each test gets a fresh backend to ensure
// isolation.
func RunConformanceSuite(t *testing.T, factory BackendFactory) {
	t.Helper()

	t.Run("Update", func(t *testing.T) {
		runUpdateTests(t, factory)
	})

	t.Run("Query", func(t *testing.T) {
		runQueryTests(t, factory)
	})
}

// ============================================================================
// Shared Fixtures
// ============================================================================

var (
	rootID = rbh.ID("root-0001")
	fileID = rbh.ID("file-0002")
	dirID  = rbh.ID("dir-0003")
)

// allFields asks for everything; individual tests narrow it.
var allFields = rbh.Projection{Entry: rbh.EntryAll, Statx: rbh.StatxAll}

// regularStatx builds a populated stat record for a regular file.
func regularStatx(size uint64, mtime int64) *rbh.Statx {
	return &rbh.Statx{
		Mask: rbh.StatxType | rbh.StatxMode | rbh.StatxUID | rbh.StatxGID |
			rbh.StatxSize | rbh.StatxMtime,
		Mode:  rbh.TypeRegular | 0o644,
		UID:   1000,
		GID:   1000,
		Size:  size,
		Mtime: rbh.Timestamp{Sec: mtime},
	}
}

// seedRoot installs the root entry: an upsert plus a link through the
// empty parent identifier.
func seedRoot(t *testing.T, backend rbh.Backend) {
	t.Helper()

	statx := &rbh.Statx{
		Mask: rbh.StatxType | rbh.StatxMode,
		Mode: rbh.TypeDirectory | 0o755,
	}
	applyEvents(t, backend,
		rbh.UpsertEvent(rootID, statx, ""),
		rbh.LinkEvent(rootID, nil, ""),
	)
}

// seedFile installs a regular file named name under the root.
func seedFile(t *testing.T, backend rbh.Backend, id rbh.ID, name string, statx *rbh.Statx) {
	t.Helper()

	applyEvents(t, backend,
		rbh.UpsertEvent(id, statx, ""),
		rbh.LinkEvent(id, rootID, name),
	)
}

// applyEvents pushes events through Update and asserts they are all
// accepted.
func applyEvents(t *testing.T, backend rbh.Backend, events ...*rbh.Event) {
	t.Helper()

	count, err := backend.Update(context.Background(), iterator.Slice(events))
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if count != len(events) {
		t.Fatalf("Update() accepted %d events, want %d", count, len(events))
	}
}

// queryAll collects every entry matching filter.
func queryAll(t *testing.T, backend rbh.Backend, filter *rbh.Filter, proj rbh.Projection) []*rbh.Entry {
	t.Helper()

	it, err := backend.FilterEntries(context.Background(), filter, proj)
	if err != nil {
		t.Fatalf("FilterEntries() failed: %v", err)
	}
	defer it.Close()

	entries, err := iterator.Collect(it)
	if err != nil {
		t.Fatalf("iterating entries failed: %v", err)
	}
	return entries
}

// nameFilter builds name = value.
func nameFilter(name string) *rbh.Filter {
	return rbh.Equal(rbh.Field{ID: rbh.FieldName}, rbh.StringValue(name))
}
