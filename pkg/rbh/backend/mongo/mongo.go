// Package mongo implements the document-database backend. Entries map
// to one document each; bulk updates lower the event stream to a single
// ordered BulkWrite and queries translate the filter AST to an
// aggregation pipeline evaluated by the server.
package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rbh-project/rbh/internal/logger"
	"github.com/rbh-project/rbh/pkg/metrics"
	"github.com/rbh-project/rbh/pkg/rbh"
	"github.com/rbh-project/rbh/pkg/rbh/uri"
)

// Scheme is the URI scheme served by this backend.
const Scheme = "mongo"

// entriesCollection holds one document per filesystem entry.
const entriesCollection = "entries"

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
	return Connect(ctx, cfg)
}

// Config holds the connection parameters of a mongo backend.
//
// The URI supplies everything: `mongo:foo` indexes fsname "foo" on
// localhost, `mongo://db.example:27017/foo?connect_timeout=5s` names the
// server explicitly. Driver deadlines come from these options; the core
// imposes no timeouts of its own.
type Config struct {
	// Hosts is the server address, taken from the URI authority.
	Hosts string `mapstructure:"-"`

	// Fsname names the indexed filesystem; it becomes the database name.
	Fsname string `mapstructure:"-" validate:"required"`

	// Userinfo carries credentials from the URI, if any.
	Userinfo string `mapstructure:"-"`

	// ConnectTimeout bounds server selection and dialing.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	// MaxPoolSize caps the driver's connection pool.
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
}

func configFromURI(u *uri.URI) (Config, error) {
	cfg := Config{
		Fsname:   strings.TrimPrefix(u.Path, "/"),
		Userinfo: u.Userinfo,
	}
	if u.HasAuthority {
		cfg.Hosts = u.Host
		if u.Port != "" {
			cfg.Hosts += ":" + u.Port
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(u.QueryValues()); err != nil {
		return Config{}, rbh.NewInvalidInputError("bad mongo options: %s", err.Error())
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, rbh.NewInvalidInputError("bad mongo options: %s", err.Error())
	}
	return cfg, nil
}

// connString renders the driver connection string.
func (cfg Config) connString() string {
	hosts := cfg.Hosts
	if hosts == "" {
		hosts = "localhost:27017"
	}
	if cfg.Userinfo != "" {
		return fmt.Sprintf("mongodb://%s@%s", cfg.Userinfo, hosts)
	}
	return "mongodb://" + hosts
}

// Backend is a MongoDB entry store.
type Backend struct {
	client   *mongo.Client
	entries  *mongo.Collection
	fsname   string
	observer *metrics.BackendMetrics
}

var _ rbh.Backend = (*Backend)(nil)

// Connect dials the server described by cfg and binds the backend to its
// database.
func Connect(ctx context.Context, cfg Config) (*Backend, error) {
	opts := options.Client().ApplyURI(cfg.connString())
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
		opts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, rbh.NewBackendError(Scheme, err)
	}

	logger.Info("connected mongo backend",
		logger.KeyBackend, Scheme,
		logger.KeyFsname, cfg.Fsname)

	return &Backend{
		client:   client,
		entries:  client.Database(cfg.Fsname).Collection(entriesCollection),
		fsname:   cfg.Fsname,
		observer: metrics.NewBackendMetrics(),
	}, nil
}

// Root returns the entry reachable through the empty parent identifier.
func (b *Backend) Root(ctx context.Context, proj rbh.Projection) (*rbh.Entry, error) {
	rootFilter := rbh.Equal(rbh.Field{ID: rbh.FieldParentID}, rbh.BinaryValue(nil))
	return rbh.FilterOne(ctx, b, rootFilter, proj)
}

// Close disconnects from the server. Outstanding cursors become invalid.
func (b *Backend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := b.client.Disconnect(ctx); err != nil {
		return rbh.NewBackendError(Scheme, err)
	}
	logger.Debug("closed mongo backend", logger.KeyBackend, Scheme, logger.KeyFsname, b.fsname)
	return nil
}
