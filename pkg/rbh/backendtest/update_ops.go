package backendtest

import (
	"context"
	"testing"

	"github.com/rbh-project/rbh/pkg/rbh"
	"github.com/rbh-project/rbh/pkg/rbh/iterator"
)

// runUpdateTests runs all bulk-update conformance tests.
func runUpdateTests(t *testing.T, factory BackendFactory) {
	t.Run("EmptyStream", func(t *testing.T) { testEmptyStream(t, factory) })
	t.Run("UpsertThenQuery", func(t *testing.T) { testUpsertThenQuery(t, factory) })
	t.Run("DeleteIdempotent", func(t *testing.T) { testDeleteIdempotent(t, factory) })
	t.Run("LinkUnlinkInverse", func(t *testing.T) { testLinkUnlinkInverse(t, factory) })
	t.Run("LinkReplacesOccupant", func(t *testing.T) { testLinkReplacesOccupant(t, factory) })
	t.Run("LinkUnlinkDeleteOnEmptyStore", func(t *testing.T) { testLinkUnlinkDeleteOnEmptyStore(t, factory) })
	t.Run("UnlinkNeverCreates", func(t *testing.T) { testUnlinkNeverCreates(t, factory) })
	t.Run("HardLinks", func(t *testing.T) { testHardLinks(t, factory) })
	t.Run("PartialUpsertWidensMask", func(t *testing.T) { testPartialUpsertWidensMask(t, factory) })
	t.Run("Xattrs", func(t *testing.T) { testXattrs(t, factory) })
}

// testEmptyStream verifies that an empty event stream is a no-op.
func testEmptyStream(t *testing.T, factory BackendFactory) {
	backend := factory(t)

	count, err := backend.Update(context.Background(), iterator.Slice[*rbh.Event](nil))
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Update() = %d, want 0", count)
	}
}

// testUpsertThenQuery verifies the basic ingest-then-find round trip.
func testUpsertThenQuery(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)
	seedFile(t, backend, fileID, "foo.c", regularStatx(42, 1700000001))

	entries := queryAll(t, backend, nameFilter("foo.c"), allFields)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	entry := entries[0]
	if !entry.ID.Equal(fileID) {
		t.Errorf("ID = %s, want %s", entry.ID, fileID)
	}
	if entry.Name != "foo.c" {
		t.Errorf("Name = %q, want %q", entry.Name, "foo.c")
	}
	if !entry.ParentID.Equal(rootID) {
		t.Errorf("ParentID = %s, want %s", entry.ParentID, rootID)
	}
	if entry.Statx == nil {
		t.Fatal("Statx missing")
	}
	if entry.Statx.Size != 42 {
		t.Errorf("Size = %d, want 42", entry.Statx.Size)
	}
	if entry.Statx.Type() != rbh.TypeRegular {
		t.Errorf("Type = %o, want regular", entry.Statx.Type())
	}
}

// testDeleteIdempotent verifies that deleting twice equals deleting once.
func testDeleteIdempotent(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)
	seedFile(t, backend, fileID, "victim", regularStatx(1, 1700000000))

	applyEvents(t, backend, rbh.DeleteEvent(fileID))
	applyEvents(t, backend, rbh.DeleteEvent(fileID))

	if entries := queryAll(t, backend, nameFilter("victim"), allFields); len(entries) != 0 {
		t.Errorf("got %d entries after double delete, want 0", len(entries))
	}
}

// testLinkUnlinkInverse verifies that link(p,n) followed by unlink(p,n)
// leaves no namespace edge for that id under p.
func testLinkUnlinkInverse(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)

	applyEvents(t, backend,
		rbh.UpsertEvent(fileID, regularStatx(7, 1700000000), ""),
		rbh.LinkEvent(fileID, rootID, "a"),
		rbh.UnlinkEvent(fileID, rootID, "a"),
	)

	if entries := queryAll(t, backend, nameFilter("a"), allFields); len(entries) != 0 {
		t.Errorf("got %d entries after link+unlink, want 0", len(entries))
	}
}

// testLinkReplacesOccupant verifies that linking an entry at a path
// currently held by a different entry evicts the previous occupant's
// edge: a {parent, name} slot has exactly one occupant.
func testLinkReplacesOccupant(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)
	seedFile(t, backend, fileID, "shared", regularStatx(1, 1700000000))

	applyEvents(t, backend,
		rbh.UpsertEvent(dirID, regularStatx(2, 1700000001), ""),
		rbh.LinkEvent(dirID, rootID, "shared"),
	)

	entries := queryAll(t, backend, nameFilter("shared"), allFields)
	if len(entries) != 1 {
		t.Fatalf("got %d entries at the slot, want 1", len(entries))
	}
	if !entries[0].ID.Equal(dirID) {
		t.Errorf("slot occupant = %s, want %s", entries[0].ID, dirID)
	}

	// The evicted entry lost its only edge and is no longer reachable.
	idFilter := rbh.Equal(rbh.Field{ID: rbh.FieldEntryID}, rbh.BinaryValue(fileID))
	if entries := queryAll(t, backend, idFilter, allFields); len(entries) != 0 {
		t.Errorf("evicted entry still reachable: %d results", len(entries))
	}
}

// testLinkUnlinkDeleteOnEmptyStore verifies that a link/unlink/delete
// sequence against an empty store accepts every event and leaves the
// store empty.
func testLinkUnlinkDeleteOnEmptyStore(t *testing.T, factory BackendFactory) {
	backend := factory(t)

	events := []*rbh.Event{
		rbh.LinkEvent(fileID, dirID, "a"),
		rbh.UnlinkEvent(fileID, dirID, "a"),
		rbh.DeleteEvent(fileID),
	}
	count, err := backend.Update(context.Background(), iterator.Slice(events))
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Update() = %d, want 3", count)
	}

	if entries := queryAll(t, backend, nil, allFields); len(entries) != 0 {
		t.Errorf("store not empty: %d entries", len(entries))
	}
}

// testUnlinkNeverCreates verifies that unlinking an absent entry does
// not materialize it.
func testUnlinkNeverCreates(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)

	applyEvents(t, backend, rbh.UnlinkEvent(fileID, rootID, "ghost"))

	idFilter := rbh.Equal(rbh.Field{ID: rbh.FieldEntryID}, rbh.BinaryValue(fileID))
	if entries := queryAll(t, backend, idFilter, allFields); len(entries) != 0 {
		t.Errorf("unlink created entry: %d results", len(entries))
	}
}

// testHardLinks verifies that an entry linked under two parents is
// emitted once per namespace edge.
func testHardLinks(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)

	dirStatx := &rbh.Statx{
		Mask: rbh.StatxType | rbh.StatxMode,
		Mode: rbh.TypeDirectory | 0o755,
	}
	applyEvents(t, backend,
		rbh.UpsertEvent(dirID, dirStatx, ""),
		rbh.LinkEvent(dirID, rootID, "subdir"),
		rbh.UpsertEvent(fileID, regularStatx(9, 1700000000), ""),
		rbh.LinkEvent(fileID, rootID, "hard"),
		rbh.LinkEvent(fileID, dirID, "hard"),
	)

	idFilter := rbh.Equal(rbh.Field{ID: rbh.FieldEntryID}, rbh.BinaryValue(fileID))
	entries := queryAll(t, backend, idFilter, allFields)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want one per edge (2)", len(entries))
	}

	parents := map[string]bool{}
	for _, entry := range entries {
		parents[string(entry.ParentID)] = true
		if entry.Name != "hard" {
			t.Errorf("Name = %q, want %q", entry.Name, "hard")
		}
	}
	if !parents[string(rootID)] || !parents[string(dirID)] {
		t.Errorf("parents = %v, want both %s and %s", parents, rootID, dirID)
	}
}

// testPartialUpsertWidensMask verifies that a second upsert carrying
// other fields merges instead of replacing.
func testPartialUpsertWidensMask(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)
	seedFile(t, backend, fileID, "partial", regularStatx(10, 1700000000))

	uidOnly := &rbh.Statx{Mask: rbh.StatxUID, UID: 4242}
	applyEvents(t, backend, rbh.UpsertEvent(fileID, uidOnly, ""))

	entries := queryAll(t, backend, nameFilter("partial"), allFields)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	statx := entries[0].Statx
	if statx == nil {
		t.Fatal("Statx missing")
	}
	if statx.UID != 4242 {
		t.Errorf("UID = %d, want 4242", statx.UID)
	}
	if statx.Size != 10 {
		t.Errorf("Size = %d, want 10 (previous fields must survive)", statx.Size)
	}
	if !statx.Mask.Has(rbh.StatxUID | rbh.StatxSize) {
		t.Errorf("Mask = %#x, want uid and size bits", statx.Mask)
	}
}

// testXattrs verifies that both xattr event variants merge into their
// respective maps and stay distinct.
func testXattrs(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)
	seedFile(t, backend, fileID, "attrs", regularStatx(1, 1700000000))

	applyEvents(t, backend,
		rbh.InodeXattrsEvent(fileID, rbh.XattrMap{"color": rbh.StringValue("blue")}),
		rbh.NamespaceXattrsEvent(fileID, rbh.XattrMap{"depth": rbh.Int64Value(1)}),
		rbh.InodeXattrsEvent(fileID, rbh.XattrMap{"hits": rbh.Int64Value(99)}),
	)

	entries := queryAll(t, backend, nameFilter("attrs"), allFields)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	entry := entries[0]
	if got := entry.InodeXattrs["color"]; got.Str != "blue" {
		t.Errorf("inode xattr color = %v, want blue", got)
	}
	if got := entry.InodeXattrs["hits"]; got.Int != 99 {
		t.Errorf("inode xattr hits = %v, want 99 (merge must keep both keys)", got)
	}
	if got := entry.NamespaceXattrs["depth"]; got.Int != 1 {
		t.Errorf("namespace xattr depth = %v, want 1", got)
	}
	if _, ok := entry.InodeXattrs["depth"]; ok {
		t.Error("namespace xattr leaked into inode xattrs")
	}
}
