package badger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/rbh-project/rbh/pkg/rbh"
)

// ============================================================================
// Database Key Namespace Design
// ============================================================================
//
// BadgerDB is a key-value store, so keys carry a prefix that namespaces
// the data they hold. One document per entry keeps the event lowering a
// single get-modify-set per event and lets queries run as one prefix
// scan over the entry namespace. The edge index records the occupant of
// each {parent, name} namespace slot so a link event can evict whatever
// entry currently holds the slot without scanning.
//
// Data Type     Prefix   Key Format                 Value Type
// =============================================================
// Entry Data    "e:"     e:<id-hex>                 entryDoc (JSON)
// Edge Index    "c:"     c:<parent-hex>:<name>      entry id (raw bytes)

const (
	prefixEntry = "e:"
	prefixEdge  = "c:"
)

// keyEntry generates the key for an entry document: "e:<id-hex>".
func keyEntry(id rbh.ID) []byte {
	return []byte(prefixEntry + hex.EncodeToString(id))
}

// keyEdge generates the key of a {parent, name} namespace slot:
// "c:<parent-hex>:<name>". The hex parent keeps ':' out of the middle
// component, so the root slot is the bare "c::<name>".
func keyEdge(parentID rbh.ID, name string) []byte {
	return []byte(prefixEdge + hex.EncodeToString(parentID) + ":" + name)
}

// entryDoc is the stored form of one entry.
type entryDoc struct {
	ID          []byte       `json:"id"`
	Namespace   []nsEntryDoc `json:"ns,omitempty"`
	Statx       *rbh.Statx   `json:"statx,omitempty"`
	Symlink     string       `json:"symlink,omitempty"`
	NsXattrs    rbh.XattrMap `json:"ns_xattrs,omitempty"`
	InodeXattrs rbh.XattrMap `json:"xattrs,omitempty"`
}

// nsEntryDoc is one stored namespace edge.
type nsEntryDoc struct {
	ParentID []byte `json:"parent"`
	Name     string `json:"name"`
}

func encodeEntry(doc *entryDoc) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entry %x: %w", doc.ID, err)
	}
	return data, nil
}

func decodeEntry(data []byte) (*entryDoc, error) {
	var doc entryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode entry: %w", err)
	}
	return &doc, nil
}

// entry materializes the document as observed under one namespace edge.
func (doc *entryDoc) entry(edge rbh.NamespaceEntry) *rbh.Entry {
	e := &rbh.Entry{
		ID:       doc.ID,
		ParentID: edge.ParentID,
		Name:     edge.Name,
		Mask:     rbh.EntryID | rbh.EntryParentID | rbh.EntryName | rbh.EntryNamespace,
	}
	e.Namespace = make([]rbh.NamespaceEntry, len(doc.Namespace))
	for i, ns := range doc.Namespace {
		e.Namespace[i] = rbh.NamespaceEntry{ParentID: ns.ParentID, Name: ns.Name}
	}
	if doc.Statx != nil {
		e.Statx = doc.Statx
		e.Mask |= rbh.EntryStatx
	}
	if doc.Symlink != "" {
		e.Symlink = doc.Symlink
		e.Mask |= rbh.EntrySymlink
	}
	if doc.NsXattrs != nil {
		e.NamespaceXattrs = doc.NsXattrs
		e.Mask |= rbh.EntryNamespaceXattrs
	}
	if doc.InodeXattrs != nil {
		e.InodeXattrs = doc.InodeXattrs
		e.Mask |= rbh.EntryInodeXattrs
	}
	return e
}

// edges returns the document's namespace edges in rbh form.
func (doc *entryDoc) edges() []rbh.NamespaceEntry {
	edges := make([]rbh.NamespaceEntry, len(doc.Namespace))
	for i, ns := range doc.Namespace {
		edges[i] = rbh.NamespaceEntry{ParentID: ns.ParentID, Name: ns.Name}
	}
	return edges
}
