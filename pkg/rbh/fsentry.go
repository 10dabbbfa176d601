package rbh

import (
	"bytes"
	"encoding/hex"
)

// ID is the opaque identifier of a filesystem entry: a length-delimited
// binary blob assigned by the scanner. The zero-length ID designates the
// filesystem root when used as a parent reference.
type ID []byte

// IsRoot reports whether the ID is the root identifier (the empty blob).
func (id ID) IsRoot() bool {
	return len(id) == 0
}

// Equal reports byte equality of two identifiers.
func (id ID) Equal(o ID) bool {
	return bytes.Equal(id, o)
}

// String renders the ID as hex for diagnostics.
func (id ID) String() string {
	return hex.EncodeToString(id)
}

// NamespaceEntry is one namespace edge: the entry is named Name under the
// parent identified by ParentID. An entry with several edges is a
// hard-linked file; the root's edge has an empty ParentID.
type NamespaceEntry struct {
	ParentID ID
	Name     string
}

// XattrMap holds extended attributes keyed by name.
type XattrMap map[string]Value

// Clone returns a deep copy of the map.
func (m XattrMap) Clone() XattrMap {
	if m == nil {
		return nil
	}
	cp := make(XattrMap, len(m))
	for k, v := range m {
		cp[k] = v.Clone()
	}
	return cp
}

// EntryMask selects entry fields in queries and results. The mask a
// query advertises bounds the fields populated in its results.
type EntryMask uint32

const (
	EntryID EntryMask = 1 << iota
	EntryParentID
	EntryName
	EntryStatx
	EntryNamespace
	EntrySymlink
	EntryNamespaceXattrs
	EntryInodeXattrs

	EntryAll EntryMask = 1<<iota - 1
)

// Has reports whether every bit of want is set.
func (m EntryMask) Has(want EntryMask) bool {
	return m&want == want
}

// Entry is a filesystem object record. All fields except ID are
// optional; Mask advertises which ones are populated.
//
// ParentID and Name describe the namespace edge the entry was observed
// under; Namespace lists every edge. After the query pipeline's unwind,
// an entry appears once per edge with ParentID/Name bound to that edge.
type Entry struct {
	ID        ID
	ParentID  ID
	Name      string
	Statx     *Statx
	Namespace []NamespaceEntry
	Symlink   string

	// NamespaceXattrs are attributes of the namespace edge (e.g. scanner
	// bookkeeping per path); InodeXattrs are attributes of the inode.
	NamespaceXattrs XattrMap
	InodeXattrs     XattrMap

	Mask EntryMask
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := &Entry{
		ID:       append(ID(nil), e.ID...),
		ParentID: append(ID(nil), e.ParentID...),
		Name:     e.Name,
		Symlink:  e.Symlink,
		Mask:     e.Mask,
	}
	if e.Statx != nil {
		statx := *e.Statx
		out.Statx = &statx
	}
	if e.Namespace != nil {
		out.Namespace = make([]NamespaceEntry, len(e.Namespace))
		for i, ns := range e.Namespace {
			out.Namespace[i] = NamespaceEntry{
				ParentID: append(ID(nil), ns.ParentID...),
				Name:     ns.Name,
			}
		}
	}
	out.NamespaceXattrs = e.NamespaceXattrs.Clone()
	out.InodeXattrs = e.InodeXattrs.Clone()
	return out
}

// Project returns a copy of the entry restricted to the fields selected
// by proj. Fields outside the masks are left at their zero value and
// cleared from the result's Mask.
func (e *Entry) Project(proj Projection) *Entry {
	out := &Entry{Mask: e.Mask & proj.Entry}
	if out.Mask.Has(EntryID) {
		out.ID = append(ID(nil), e.ID...)
	}
	if out.Mask.Has(EntryParentID) {
		out.ParentID = append(ID(nil), e.ParentID...)
	}
	if out.Mask.Has(EntryName) {
		out.Name = e.Name
	}
	if out.Mask.Has(EntryStatx) && e.Statx != nil {
		out.Statx = e.Statx.Project(proj.Statx)
	}
	if out.Mask.Has(EntryNamespace) {
		out.Namespace = make([]NamespaceEntry, len(e.Namespace))
		for i, ns := range e.Namespace {
			out.Namespace[i] = NamespaceEntry{
				ParentID: append(ID(nil), ns.ParentID...),
				Name:     ns.Name,
			}
		}
	}
	if out.Mask.Has(EntrySymlink) {
		out.Symlink = e.Symlink
	}
	if out.Mask.Has(EntryNamespaceXattrs) {
		out.NamespaceXattrs = e.NamespaceXattrs.Clone()
	}
	if out.Mask.Has(EntryInodeXattrs) {
		out.InodeXattrs = e.InodeXattrs.Clone()
	}
	return out
}

// Projection bounds the fields a query populates: an entry-level mask
// plus a statx-level mask applied to the stat record.
type Projection struct {
	Entry EntryMask
	Statx StatxMask
}
