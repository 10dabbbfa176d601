package backendtest

import (
	"context"
	"errors"
	"testing"

	"github.com/rbh-project/rbh/pkg/rbh"
	"github.com/rbh-project/rbh/pkg/rbh/iterator"
)

// runQueryTests runs all query conformance tests.
func runQueryTests(t *testing.T, factory BackendFactory) {
	t.Run("Root", func(t *testing.T) { testRoot(t, factory) })
	t.Run("RootProjection", func(t *testing.T) { testRootProjection(t, factory) })
	t.Run("RootMissing", func(t *testing.T) { testRootMissing(t, factory) })
	t.Run("NullFilterMatchesAll", func(t *testing.T) { testNullFilterMatchesAll(t, factory) })
	t.Run("NotNullMatchesNothing", func(t *testing.T) { testNotNullMatchesNothing(t, factory) })
	t.Run("ConjunctionWithOrdering", func(t *testing.T) { testConjunctionWithOrdering(t, factory) })
	t.Run("RegexUnanchored", func(t *testing.T) { testRegexUnanchored(t, factory) })
	t.Run("InMembership", func(t *testing.T) { testInMembership(t, factory) })
	t.Run("BitwiseOnMode", func(t *testing.T) { testBitwiseOnMode(t, factory) })
	t.Run("SubmapXattrEquality", func(t *testing.T) { testSubmapXattrEquality(t, factory) })
	t.Run("ProjectionBoundsFields", func(t *testing.T) { testProjectionBoundsFields(t, factory) })
	t.Run("FilterOne", func(t *testing.T) { testFilterOne(t, factory) })
	t.Run("PartialIteration", func(t *testing.T) { testPartialIteration(t, factory) })
	t.Run("InvalidFilterRejected", func(t *testing.T) { testInvalidFilterRejected(t, factory) })
}

// testRoot verifies that Root returns the entry with the empty parent.
func testRoot(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)
	seedFile(t, backend, fileID, "child", regularStatx(5, 1700000000))

	root, err := backend.Root(context.Background(), allFields)
	if err != nil {
		t.Fatalf("Root() failed: %v", err)
	}
	if !root.ID.Equal(rootID) {
		t.Errorf("ID = %s, want %s", root.ID, rootID)
	}
	if !root.ParentID.IsRoot() {
		t.Errorf("ParentID = %s, want empty", root.ParentID)
	}
}

// testRootProjection verifies that Root honors the entry mask: asking
// for id and parent only returns id and parent only.
func testRootProjection(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)
	seedFile(t, backend, fileID, "child", regularStatx(5, 1700000000))

	root, err := backend.Root(context.Background(), rbh.Projection{Entry: rbh.EntryID | rbh.EntryParentID})
	if err != nil {
		t.Fatalf("Root() failed: %v", err)
	}
	if !root.ID.Equal(rootID) {
		t.Errorf("ID = %s, want %s", root.ID, rootID)
	}
	if !root.ParentID.IsRoot() {
		t.Errorf("ParentID = %s, want empty", root.ParentID)
	}
	if root.Statx != nil {
		t.Error("Statx populated outside the mask")
	}
	if root.Name != "" {
		t.Errorf("Name = %q, want empty (outside the mask)", root.Name)
	}
}

// testRootMissing verifies the no-such-entry classification on an empty
// store.
func testRootMissing(t *testing.T, factory BackendFactory) {
	backend := factory(t)

	_, err := backend.Root(context.Background(), allFields)
	if !rbh.IsNoSuchEntry(err) {
		t.Errorf("Root() on empty store = %v, want no-such-entry", err)
	}
}

// testNullFilterMatchesAll verifies the null filter sentinel.
func testNullFilterMatchesAll(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)
	seedFile(t, backend, fileID, "a", regularStatx(1, 1700000000))
	seedFile(t, backend, dirID, "b", regularStatx(2, 1700000000))

	entries := queryAll(t, backend, nil, allFields)
	if len(entries) != 3 {
		t.Errorf("got %d entries, want 3 (root, a, b)", len(entries))
	}
}

// testNotNullMatchesNothing verifies that the negated null filter
// rejects every entry.
func testNotNullMatchesNothing(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)
	seedFile(t, backend, fileID, "a", regularStatx(1, 1700000000))

	entries := queryAll(t, backend, rbh.Not(nil), allFields)
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

// testConjunctionWithOrdering verifies and[name=, mtime>=] matching.
func testConjunctionWithOrdering(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)
	seedFile(t, backend, fileID, "foo.c", regularStatx(42, 1700000001))
	seedFile(t, backend, dirID, "foo.c.bak", regularStatx(42, 1600000000))

	filter := rbh.And(
		rbh.Equal(rbh.Field{ID: rbh.FieldName}, rbh.StringValue("foo.c")),
		rbh.GreaterOrEqual(rbh.Field{ID: rbh.FieldMtime}, rbh.Int64Value(1700000000)),
	)
	entries := queryAll(t, backend, filter, allFields)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if !entries[0].ID.Equal(fileID) {
		t.Errorf("ID = %s, want %s", entries[0].ID, fileID)
	}
}

// testRegexUnanchored verifies that matches is substring-like unless the
// caller anchors the pattern.
func testRegexUnanchored(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)
	seedFile(t, backend, fileID, "main_test.go", regularStatx(1, 1700000000))
	seedFile(t, backend, dirID, "MAIN.GO", regularStatx(2, 1700000000))

	unanchored := rbh.Match(rbh.Field{ID: rbh.FieldName}, "test", 0)
	if entries := queryAll(t, backend, unanchored, allFields); len(entries) != 1 {
		t.Errorf("unanchored: got %d entries, want 1", len(entries))
	}

	insensitive := rbh.Match(rbh.Field{ID: rbh.FieldName}, "^main", rbh.RegexCaseInsensitive)
	if entries := queryAll(t, backend, insensitive, allFields); len(entries) != 2 {
		t.Errorf("case-insensitive: got %d entries, want 2", len(entries))
	}
}

// testInMembership verifies sequence membership on names.
func testInMembership(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)
	seedFile(t, backend, fileID, "a.c", regularStatx(1, 1700000000))
	seedFile(t, backend, dirID, "b.c", regularStatx(2, 1700000000))

	filter := rbh.In(rbh.Field{ID: rbh.FieldName},
		rbh.StringValue("a.c"),
		rbh.StringValue("missing"),
	)
	entries := queryAll(t, backend, filter, allFields)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Name != "a.c" {
		t.Errorf("Name = %q, want a.c", entries[0].Name)
	}
}

// testBitwiseOnMode verifies the bit-vector operators against the
// permission bits. The seeded root (0o755) takes part in both queries.
func testBitwiseOnMode(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)

	statx := regularStatx(1, 1700000000)
	statx.Mode = rbh.TypeRegular | 0o750
	seedFile(t, backend, fileID, "exec", statx)

	// Group-execute is set on both the root (0o755) and "exec" (0o750).
	groupExec := rbh.Compare(rbh.OpBitsAllSet,
		rbh.Field{ID: rbh.FieldMode}, rbh.UInt32Value(0o010))
	if entries := queryAll(t, backend, groupExec, allFields); len(entries) != 2 {
		t.Errorf("bits-all-set: got %d entries, want 2", len(entries))
	}

	// Only the root has "other" bits set; "exec" has none.
	otherBits := rbh.Compare(rbh.OpBitsAnySet,
		rbh.Field{ID: rbh.FieldMode}, rbh.UInt32Value(0o007))
	if entries := queryAll(t, backend, otherBits, allFields); len(entries) != 1 {
		t.Errorf("bits-any-set: got %d entries, want 1", len(entries))
	}
}

// testSubmapXattrEquality verifies the submap interpretation of '=' on
// map-valued fields across backends: every key of the filter value must
// be stored with an equal value, extra stored keys are tolerated.
func testSubmapXattrEquality(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)
	seedFile(t, backend, fileID, "tagged", regularStatx(1, 1700000000))

	applyEvents(t, backend, rbh.InodeXattrsEvent(fileID, rbh.XattrMap{
		"tags": rbh.MapValue(map[string]rbh.Value{
			"a": rbh.Int64Value(1),
			"b": rbh.Int64Value(2),
		}),
	}))

	tags := rbh.Field{ID: rbh.FieldInodeXattr, Xattr: "tags"}

	// A strict subset of the stored keys matches despite the extra key.
	submap := rbh.Equal(tags, rbh.MapValue(map[string]rbh.Value{"a": rbh.Int64Value(1)}))
	if entries := queryAll(t, backend, submap, allFields); len(entries) != 1 {
		t.Errorf("submap: got %d entries, want 1", len(entries))
	}

	// The full stored map matches too.
	full := rbh.Equal(tags, rbh.MapValue(map[string]rbh.Value{
		"a": rbh.Int64Value(1),
		"b": rbh.Int64Value(2),
	}))
	if entries := queryAll(t, backend, full, allFields); len(entries) != 1 {
		t.Errorf("full map: got %d entries, want 1", len(entries))
	}

	// A key with the wrong value does not match.
	wrong := rbh.Equal(tags, rbh.MapValue(map[string]rbh.Value{"a": rbh.Int64Value(9)}))
	if entries := queryAll(t, backend, wrong, allFields); len(entries) != 0 {
		t.Errorf("wrong value: got %d entries, want 0", len(entries))
	}

	// A key absent from storage does not match.
	extra := rbh.Equal(tags, rbh.MapValue(map[string]rbh.Value{
		"a": rbh.Int64Value(1),
		"z": rbh.Int64Value(0),
	}))
	if entries := queryAll(t, backend, extra, allFields); len(entries) != 0 {
		t.Errorf("extra filter key: got %d entries, want 0", len(entries))
	}
}

// testProjectionBoundsFields verifies that fields outside the caller's
// masks are omitted from results.
func testProjectionBoundsFields(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)
	seedFile(t, backend, fileID, "narrow", regularStatx(123, 1700000000))

	proj := rbh.Projection{
		Entry: rbh.EntryID | rbh.EntryName | rbh.EntryStatx,
		Statx: rbh.StatxSize,
	}
	entries := queryAll(t, backend, nameFilter("narrow"), proj)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	entry := entries[0]
	if entry.Name != "narrow" {
		t.Errorf("Name = %q, want narrow", entry.Name)
	}
	if entry.Statx == nil {
		t.Fatal("Statx missing")
	}
	if entry.Statx.Size != 123 {
		t.Errorf("Size = %d, want 123", entry.Statx.Size)
	}
	if entry.Statx.Mask.Has(rbh.StatxUID) {
		t.Error("UID populated outside the statx mask")
	}
	if entry.Symlink != "" {
		t.Error("Symlink populated outside the entry mask")
	}
}

// testFilterOne verifies the single-result convenience wrapper.
func testFilterOne(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)
	seedFile(t, backend, fileID, "needle", regularStatx(1, 1700000000))

	entry, err := rbh.FilterOne(context.Background(), backend, nameFilter("needle"), allFields)
	if err != nil {
		t.Fatalf("FilterOne() failed: %v", err)
	}
	if !entry.ID.Equal(fileID) {
		t.Errorf("ID = %s, want %s", entry.ID, fileID)
	}

	_, err = rbh.FilterOne(context.Background(), backend, nameFilter("haystack"), allFields)
	if !rbh.IsNoSuchEntry(err) {
		t.Errorf("FilterOne() on no match = %v, want no-such-entry", err)
	}
}

// testPartialIteration verifies that closing a half-consumed result
// iterator neither fails nor disturbs later queries.
func testPartialIteration(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)
	seedFile(t, backend, fileID, "one", regularStatx(1, 1700000000))
	seedFile(t, backend, dirID, "two", regularStatx(2, 1700000000))

	it, err := backend.FilterEntries(context.Background(), nil, allFields)
	if err != nil {
		t.Fatalf("FilterEntries() failed: %v", err)
	}
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.ErrNoMoreData) {
		t.Fatalf("Next() failed: %v", err)
	}
	if err := it.Close(); err != nil {
		t.Fatalf("Close() after partial iteration failed: %v", err)
	}

	if entries := queryAll(t, backend, nil, allFields); len(entries) != 3 {
		t.Errorf("follow-up query got %d entries, want 3", len(entries))
	}
}

// testInvalidFilterRejected verifies that a filter violating the
// compatibility table is rejected as invalid input.
func testInvalidFilterRejected(t *testing.T, factory BackendFactory) {
	backend := factory(t)
	seedRoot(t, backend)

	bad := rbh.Compare(rbh.OpRegex, rbh.Field{ID: rbh.FieldName}, rbh.StringValue("not-a-regex"))
	_, err := backend.FilterEntries(context.Background(), bad, allFields)
	if !rbh.IsInvalidInput(err) {
		t.Errorf("FilterEntries(bad) = %v, want invalid-input", err)
	}
}
