package mongo

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rbh-project/rbh/pkg/rbh"
)

// ============================================================================
// Document Schema
// ============================================================================
//
// One document per entry:
//
//	{
//	  _id:       BinData(id),
//	  ns:        [ { parent: BinData, name: "..." }, ... ],
//	  statx:     { mask, type, mode, nlink, uid, gid, ino, size, blocks,
//	               blksize, atime: {sec, nsec}, ... },
//	  symlink:   "...",
//	  ns_xattrs: { key: value, ... },
//	  xattrs:    { key: value, ... },
//	}
//
// The file type bits live in statx.type, separate from the permission
// bits in statx.mode, so type predicates translate to plain equality
// instead of bit arithmetic.

const (
	docID       = "_id"
	docNS       = "ns"
	docNSParent = "parent"
	docNSName   = "name"
	docStatx    = "statx"
	docSymlink  = "symlink"
	docNsXattrs = "ns_xattrs"
	docXattrs   = "xattrs"
)

func binID(id rbh.ID) primitive.Binary {
	return primitive.Binary{Data: id}
}

func nsEdgeDoc(parentID rbh.ID, name string) bson.D {
	return bson.D{
		{Key: docNSParent, Value: binID(parentID)},
		{Key: docNSName, Value: name},
	}
}

// statxSets appends one $set assignment per field selected by the
// record's mask, using dotted paths so unrelated fields survive.
func statxSets(sets bson.D, s *rbh.Statx) bson.D {
	field := func(name string, value any) {
		sets = append(sets, bson.E{Key: docStatx + "." + name, Value: value})
	}

	if s.Mask.Has(rbh.StatxType) {
		field("type", int64(s.Type()))
	}
	if s.Mask.Has(rbh.StatxMode) {
		field("mode", int64(s.Mode&^rbh.ModeTypeMask))
	}
	if s.Mask.Has(rbh.StatxNlink) {
		field("nlink", int64(s.Nlink))
	}
	if s.Mask.Has(rbh.StatxUID) {
		field("uid", int64(s.UID))
	}
	if s.Mask.Has(rbh.StatxGID) {
		field("gid", int64(s.GID))
	}
	if s.Mask.Has(rbh.StatxAtime) {
		field("atime", timestampDoc(s.Atime))
	}
	if s.Mask.Has(rbh.StatxMtime) {
		field("mtime", timestampDoc(s.Mtime))
	}
	if s.Mask.Has(rbh.StatxCtime) {
		field("ctime", timestampDoc(s.Ctime))
	}
	if s.Mask.Has(rbh.StatxBtime) {
		field("btime", timestampDoc(s.Btime))
	}
	if s.Mask.Has(rbh.StatxIno) {
		field("ino", int64(s.Ino))
	}
	if s.Mask.Has(rbh.StatxSize) {
		field("size", int64(s.Size))
	}
	if s.Mask.Has(rbh.StatxBlocks) {
		field("blocks", int64(s.Blocks))
	}
	if s.Mask.Has(rbh.StatxBlksize) {
		field("blksize", int64(s.Blksize))
	}
	if s.Mask.Has(rbh.StatxRdev) {
		field("rdev_major", int64(s.RdevMajor))
		field("rdev_minor", int64(s.RdevMinor))
	}
	if s.Mask.Has(rbh.StatxDev) {
		field("dev_major", int64(s.DevMajor))
		field("dev_minor", int64(s.DevMinor))
	}
	return sets
}

func timestampDoc(t rbh.Timestamp) bson.D {
	return bson.D{
		{Key: "sec", Value: t.Sec},
		{Key: "nsec", Value: int64(t.Nsec)},
	}
}

// ============================================================================
// Value Conversion
// ============================================================================

// valueToBSON lowers a filter value to its native BSON form.
func valueToBSON(v rbh.Value) (any, error) {
	switch v.Kind {
	case rbh.ValueBinary:
		return primitive.Binary{Data: v.Bytes}, nil
	case rbh.ValueInt32, rbh.ValueInt64:
		return v.Int, nil
	case rbh.ValueUInt32:
		return int64(v.Uint), nil
	case rbh.ValueUInt64:
		// BSON has no unsigned integers; values above 2^63-1 wrap, which
		// matches the storage encoding of the write path.
		return int64(v.Uint), nil
	case rbh.ValueString:
		return v.Str, nil
	case rbh.ValueRegex:
		return primitive.Regex{Pattern: v.Regex.Pattern, Options: regexOptions(v.Regex.Options)}, nil
	case rbh.ValueSequence:
		arr := make(bson.A, len(v.Seq))
		for i, elem := range v.Seq {
			b, err := valueToBSON(elem)
			if err != nil {
				return nil, err
			}
			arr[i] = b
		}
		return arr, nil
	case rbh.ValueMap:
		doc := bson.M{}
		for k, elem := range v.Map {
			b, err := valueToBSON(elem)
			if err != nil {
				return nil, err
			}
			doc[k] = b
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("cannot encode value kind %s", v.Kind)
	}
}

func regexOptions(opts rbh.RegexOptions) string {
	if opts&rbh.RegexCaseInsensitive != 0 {
		return "i"
	}
	return ""
}

// ============================================================================
// Result Decoding
// ============================================================================

// resultDoc is the shape of an aggregation result after the namespace
// unwind: ns is the single edge the entry was observed through.
type resultDoc struct {
	ID       primitive.Binary `bson:"_id"`
	NS       *resultEdge      `bson:"ns"`
	Statx    *statxDoc        `bson:"statx"`
	Symlink  string           `bson:"symlink"`
	NsXattrs bson.M           `bson:"ns_xattrs"`
	Xattrs   bson.M           `bson:"xattrs"`
}

type resultEdge struct {
	Parent primitive.Binary `bson:"parent"`
	Name   string           `bson:"name"`
}

type statxDoc struct {
	Mask      uint32 `bson:"mask"`
	Type      int64  `bson:"type"`
	Mode      int64  `bson:"mode"`
	Nlink     int64  `bson:"nlink"`
	UID       int64  `bson:"uid"`
	GID       int64  `bson:"gid"`
	Ino       int64  `bson:"ino"`
	Size      int64  `bson:"size"`
	Blocks    int64  `bson:"blocks"`
	Blksize   int64  `bson:"blksize"`
	Atime     tsDoc  `bson:"atime"`
	Btime     tsDoc  `bson:"btime"`
	Ctime     tsDoc  `bson:"ctime"`
	Mtime     tsDoc  `bson:"mtime"`
	RdevMajor int64  `bson:"rdev_major"`
	RdevMinor int64  `bson:"rdev_minor"`
	DevMajor  int64  `bson:"dev_major"`
	DevMinor  int64  `bson:"dev_minor"`
}

type tsDoc struct {
	Sec  int64 `bson:"sec"`
	Nsec int64 `bson:"nsec"`
}

// entry converts a decoded result document into an Entry. After the
// unwind the namespace holds exactly the edge the entry was observed
// through.
func (doc *resultDoc) entry() (*rbh.Entry, error) {
	e := &rbh.Entry{ID: doc.ID.Data, Mask: rbh.EntryID}

	if doc.NS != nil {
		e.ParentID = doc.NS.Parent.Data
		e.Name = doc.NS.Name
		e.Namespace = []rbh.NamespaceEntry{{ParentID: doc.NS.Parent.Data, Name: doc.NS.Name}}
		e.Mask |= rbh.EntryParentID | rbh.EntryName | rbh.EntryNamespace
	}
	if doc.Statx != nil {
		e.Statx = doc.Statx.statx()
		e.Mask |= rbh.EntryStatx
	}
	if doc.Symlink != "" {
		e.Symlink = doc.Symlink
		e.Mask |= rbh.EntrySymlink
	}
	if doc.NsXattrs != nil {
		m, err := xattrsFromBSON(doc.NsXattrs)
		if err != nil {
			return nil, err
		}
		e.NamespaceXattrs = m
		e.Mask |= rbh.EntryNamespaceXattrs
	}
	if doc.Xattrs != nil {
		m, err := xattrsFromBSON(doc.Xattrs)
		if err != nil {
			return nil, err
		}
		e.InodeXattrs = m
		e.Mask |= rbh.EntryInodeXattrs
	}
	return e, nil
}

func (d *statxDoc) statx() *rbh.Statx {
	return &rbh.Statx{
		Mask:      rbh.StatxMask(d.Mask),
		Mode:      uint32(d.Type) | uint32(d.Mode),
		Nlink:     uint32(d.Nlink),
		UID:       uint32(d.UID),
		GID:       uint32(d.GID),
		Ino:       uint64(d.Ino),
		Size:      uint64(d.Size),
		Blocks:    uint64(d.Blocks),
		Blksize:   uint32(d.Blksize),
		Atime:     rbh.Timestamp{Sec: d.Atime.Sec, Nsec: uint32(d.Atime.Nsec)},
		Btime:     rbh.Timestamp{Sec: d.Btime.Sec, Nsec: uint32(d.Btime.Nsec)},
		Ctime:     rbh.Timestamp{Sec: d.Ctime.Sec, Nsec: uint32(d.Ctime.Nsec)},
		Mtime:     rbh.Timestamp{Sec: d.Mtime.Sec, Nsec: uint32(d.Mtime.Nsec)},
		RdevMajor: uint32(d.RdevMajor),
		RdevMinor: uint32(d.RdevMinor),
		DevMajor:  uint32(d.DevMajor),
		DevMinor:  uint32(d.DevMinor),
	}
}

// xattrsFromBSON lifts a stored xattr map back into tagged values.
func xattrsFromBSON(m bson.M) (rbh.XattrMap, error) {
	out := make(rbh.XattrMap, len(m))
	for k, v := range m {
		val, err := valueFromBSON(v)
		if err != nil {
			return nil, err
		}
		out[k] = val
	}
	return out, nil
}

func valueFromBSON(v any) (rbh.Value, error) {
	switch b := v.(type) {
	case primitive.Binary:
		return rbh.BinaryValue(b.Data), nil
	case int32:
		return rbh.Int32Value(b), nil
	case int64:
		return rbh.Int64Value(b), nil
	case string:
		return rbh.StringValue(b), nil
	case primitive.Regex:
		opts := rbh.RegexOptions(0)
		for _, c := range b.Options {
			if c == 'i' {
				opts |= rbh.RegexCaseInsensitive
			}
		}
		return rbh.RegexValue(b.Pattern, opts), nil
	case bson.A:
		seq := make([]rbh.Value, len(b))
		for i, elem := range b {
			val, err := valueFromBSON(elem)
			if err != nil {
				return rbh.Value{}, err
			}
			seq[i] = val
		}
		return rbh.Value{Kind: rbh.ValueSequence, Seq: seq}, nil
	case bson.M:
		m := make(map[string]rbh.Value, len(b))
		for k, elem := range b {
			val, err := valueFromBSON(elem)
			if err != nil {
				return rbh.Value{}, err
			}
			m[k] = val
		}
		return rbh.Value{Kind: rbh.ValueMap, Map: m}, nil
	case bson.D:
		m := make(map[string]rbh.Value, len(b))
		for _, elem := range b {
			val, err := valueFromBSON(elem.Value)
			if err != nil {
				return rbh.Value{}, err
			}
			m[elem.Key] = val
		}
		return rbh.Value{Kind: rbh.ValueMap, Map: m}, nil
	default:
		return rbh.Value{}, fmt.Errorf("cannot decode xattr value of type %T", v)
	}
}
