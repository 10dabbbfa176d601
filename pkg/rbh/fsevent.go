package rbh

// EventType identifies a change-event variant.
type EventType int

const (
	// EventDelete removes the entry and all its namespace edges.
	EventDelete EventType = iota

	// EventLink adds the namespace edge {ParentID, Name} to the entry.
	// The edge is first removed from whatever entry currently holds it:
	// linking over an occupied path replaces its occupant.
	EventLink

	// EventUnlink removes the namespace edge {ParentID, Name}. It never
	// creates the entry.
	EventUnlink

	// EventUpsert creates or updates the entry's stat record (and
	// symlink target, for symbolic links).
	EventUpsert

	// EventNamespaceXattrs merges attributes into the entry's namespace
	// xattr map.
	EventNamespaceXattrs

	// EventInodeXattrs merges attributes into the entry's inode xattr map.
	EventInodeXattrs
)

func (t EventType) String() string {
	switch t {
	case EventDelete:
		return "delete"
	case EventLink:
		return "link"
	case EventUnlink:
		return "unlink"
	case EventUpsert:
		return "upsert"
	case EventNamespaceXattrs:
		return "ns-xattrs"
	case EventInodeXattrs:
		return "inode-xattrs"
	default:
		return "unknown"
	}
}

// Event is a single state change emitted by a filesystem scanner. Every
// event targets the entry identified by ID; the remaining fields depend
// on Type.
type Event struct {
	Type EventType
	ID   ID

	// ParentID and Name describe the namespace edge of link and unlink
	// events.
	ParentID ID
	Name     string

	// Statx and Symlink carry the payload of upsert events. Statx.Mask
	// bounds the fields the upsert touches.
	Statx   *Statx
	Symlink string

	// Xattrs carries the payload of the two xattr event variants.
	Xattrs XattrMap
}

// ============================================================================
// Event Constructors
// ============================================================================

// DeleteEvent returns a delete event for id.
func DeleteEvent(id ID) *Event {
	return &Event{Type: EventDelete, ID: id}
}

// LinkEvent returns a link event adding the edge {parentID, name} to id.
func LinkEvent(id, parentID ID, name string) *Event {
	return &Event{Type: EventLink, ID: id, ParentID: parentID, Name: name}
}

// UnlinkEvent returns an unlink event removing the edge {parentID, name}
// from id.
func UnlinkEvent(id, parentID ID, name string) *Event {
	return &Event{Type: EventUnlink, ID: id, ParentID: parentID, Name: name}
}

// UpsertEvent returns an upsert event for id carrying a partial stat
// record. symlink is empty unless the entry is a symbolic link.
func UpsertEvent(id ID, statx *Statx, symlink string) *Event {
	return &Event{Type: EventUpsert, ID: id, Statx: statx, Symlink: symlink}
}

// NamespaceXattrsEvent returns an event merging xattrs into the
// namespace xattr map of id.
func NamespaceXattrsEvent(id ID, xattrs XattrMap) *Event {
	return &Event{Type: EventNamespaceXattrs, ID: id, Xattrs: xattrs}
}

// InodeXattrsEvent returns an event merging xattrs into the inode xattr
// map of id.
func InodeXattrsEvent(id ID, xattrs XattrMap) *Event {
	return &Event{Type: EventInodeXattrs, ID: id, Xattrs: xattrs}
}
