// Package badger implements an embedded backend on BadgerDB. It stores
// one JSON document per entry and evaluates filters in-process over a
// prefix scan, which suits a local index that travels with the machine
// that scanned the filesystem.
package badger

import (
	"context"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/rbh-project/rbh/internal/logger"
	"github.com/rbh-project/rbh/pkg/metrics"
	"github.com/rbh-project/rbh/pkg/rbh"
	"github.com/rbh-project/rbh/pkg/rbh/uri"
)

// Scheme is the URI scheme served by this backend.
const Scheme = "badger"

func init() {
	rbh.MustRegister(factory{})
}

type factory struct{}

func (factory) Name() string { return Scheme }

func (factory) New(ctx context.Context, u *uri.URI) (rbh.Backend, error) {
	cfg, err := configFromURI(u)
	if err != nil {
		return nil, err
	}
	return Open(cfg)
}

// Config holds the driver options of a badger backend. Options arrive as
// URI query parameters (`badger:/var/lib/rbh/scratch?sync_writes=true`).
type Config struct {
	// Path is the database directory, taken from the URI path.
	Path string `mapstructure:"-" validate:"required_without=InMemory"`

	// InMemory keeps the whole store in memory; Path is ignored.
	InMemory bool `mapstructure:"in_memory"`

	// SyncWrites makes every commit fsync. Slower, safer.
	SyncWrites bool `mapstructure:"sync_writes"`
}

func configFromURI(u *uri.URI) (Config, error) {
	cfg := Config{Path: u.Path}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(u.QueryValues()); err != nil {
		return Config{}, rbh.NewInvalidInputError("bad badger options: %s", err.Error())
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, rbh.NewInvalidInputError("bad badger options: %s", err.Error())
	}
	return cfg, nil
}

// Backend is an embedded BadgerDB entry store.
type Backend struct {
	db       *badgerdb.DB
	observer *metrics.BackendMetrics
}

var _ rbh.Backend = (*Backend)(nil)

// Open opens (creating if necessary) the database described by cfg.
func Open(cfg Config) (*Backend, error) {
	opts := badgerdb.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, rbh.NewBackendError(Scheme, err)
	}

	logger.Debug("opened badger backend", logger.KeyBackend, Scheme, "path", cfg.Path)

	return &Backend{
		db:       db,
		observer: metrics.NewBackendMetrics(),
	}, nil
}

// Root returns the entry reachable through the empty parent identifier.
func (b *Backend) Root(ctx context.Context, proj rbh.Projection) (*rbh.Entry, error) {
	rootFilter := rbh.Equal(rbh.Field{ID: rbh.FieldParentID}, rbh.BinaryValue(nil))
	return rbh.FilterOne(ctx, b, rootFilter, proj)
}

// Close closes the database. Outstanding iterators become invalid.
func (b *Backend) Close() error {
	if err := b.db.Close(); err != nil {
		return rbh.NewBackendError(Scheme, err)
	}
	return nil
}
