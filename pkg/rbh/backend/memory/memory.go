// Package memory implements an in-memory backend. It is the reference
// implementation of the event-lowering and query semantics and the
// fixture of choice for tests; nothing persists beyond the handle.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/rbh-project/rbh/pkg/metrics"
	"github.com/rbh-project/rbh/pkg/rbh"
	"github.com/rbh-project/rbh/pkg/rbh/uri"
)

// Scheme is the URI scheme served by this backend.
const Scheme = "memory"

func init() {
	rbh.MustRegister(factory{})
}

type factory struct{}

func (factory) Name() string { return Scheme }

func (factory) New(ctx context.Context, u *uri.URI) (rbh.Backend, error) {
	return New(), nil
}

// entryRecord is the stored form of one entry. ParentID and Name live in
// the namespace edges only; they are bound per edge at query time.
type entryRecord struct {
	id          rbh.ID
	namespace   []rbh.NamespaceEntry
	statx       *rbh.Statx
	symlink     string
	nsXattrs    rbh.XattrMap
	inodeXattrs rbh.XattrMap
}

// Backend is an in-memory entry store.
type Backend struct {
	mu      sync.RWMutex
	entries map[string]*entryRecord
	closed  bool

	observer *metrics.BackendMetrics
}

var _ rbh.Backend = (*Backend)(nil)

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{
		entries:  make(map[string]*entryRecord),
		observer: metrics.NewBackendMetrics(),
	}
}

// Root returns the entry reachable through the empty parent identifier.
func (b *Backend) Root(ctx context.Context, proj rbh.Projection) (*rbh.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errClosed()
	}

	for _, rec := range b.entries {
		for _, edge := range rec.namespace {
			if edge.ParentID.IsRoot() {
				return rec.entry(edge).Project(proj), nil
			}
		}
	}
	return nil, rbh.NewNoSuchEntryError()
}

// Close discards the store. Subsequent operations fail.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
	b.closed = true
	return nil
}

// entry materializes the record as observed under one namespace edge.
func (rec *entryRecord) entry(edge rbh.NamespaceEntry) *rbh.Entry {
	e := &rbh.Entry{
		ID:        rec.id,
		ParentID:  edge.ParentID,
		Name:      edge.Name,
		Namespace: rec.namespace,
		Mask:      rbh.EntryID | rbh.EntryParentID | rbh.EntryName | rbh.EntryNamespace,
	}
	if rec.statx != nil {
		e.Statx = rec.statx
		e.Mask |= rbh.EntryStatx
	}
	if rec.symlink != "" {
		e.Symlink = rec.symlink
		e.Mask |= rbh.EntrySymlink
	}
	if rec.nsXattrs != nil {
		e.NamespaceXattrs = rec.nsXattrs
		e.Mask |= rbh.EntryNamespaceXattrs
	}
	if rec.inodeXattrs != nil {
		e.InodeXattrs = rec.inodeXattrs
		e.Mask |= rbh.EntryInodeXattrs
	}
	return e
}

var errBackendClosed = errors.New("backend closed")

func errClosed() error {
	return rbh.NewBackendError(Scheme, errBackendClosed)
}
