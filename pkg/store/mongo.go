package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConfig holds connection settings for the MongoDB-backed store.
type MongoConfig struct {
	URI            string
	PlatformDB     string // e.g. "syra_platform"
	LegacyDB       string // e.g. "hospital_ops"
	TenantDBPrefix string // tenant database name is prefix + tenant key
	MaxPoolSize    uint64
	ConnectTimeout time.Duration
}

// Mongo implements Store on top of the official MongoDB driver.
type Mongo struct {
	client *mongo.Client
	cfg    MongoConfig
}

// ConnectMongo dials MongoDB and verifies the connection.
func ConnectMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, errors.New("store: mongo URI is required")
	}
	if cfg.PlatformDB == "" {
		return nil, errors.New("store: platform database name is required")
	}
	if cfg.LegacyDB == "" {
		cfg.LegacyDB = cfg.PlatformDB
	}
	if cfg.TenantDBPrefix == "" {
		cfg.TenantDBPrefix = "tenant_"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(dialCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("store: connect mongo: %w", err)
	}
	if err := client.Ping(dialCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("store: ping mongo: %w", err)
	}

	return &Mongo{client: client, cfg: cfg}, nil
}

// Platform returns the platform partition.
func (m *Mongo) Platform() Database {
	return mongoDatabase{db: m.client.Database(m.cfg.PlatformDB)}
}

// Tenant resolves a tenant key to its database handle.
func (m *Mongo) Tenant(tenantID string) (Database, error) {
	key := strings.TrimSpace(tenantID)
	if key == "" || !validTenantKey(key) {
		return nil, ErrInvalidTenant
	}
	return mongoDatabase{db: m.client.Database(m.cfg.TenantDBPrefix + key)}, nil
}

// Legacy returns the pre-multi-tenant partition.
func (m *Mongo) Legacy() Database {
	return mongoDatabase{db: m.client.Database(m.cfg.LegacyDB)}
}

// Ping verifies the connection is still alive.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// validTenantKey rejects keys that cannot safely form a database name.
func validTenantKey(key string) bool {
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return len(key) <= 48
}

type mongoDatabase struct {
	db *mongo.Database
}

func (d mongoDatabase) Collection(name string) Collection {
	return mongoCollection{coll: d.db.Collection(name)}
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter M, out interface{}) error {
	err := c.coll.FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (c mongoCollection) Find(ctx context.Context, filter M, opts *FindOptions, out interface{}) error {
	findOpts := options.Find()
	if opts != nil {
		if len(opts.Sort) > 0 {
			findOpts.SetSort(opts.Sort)
		}
		if opts.Limit > 0 {
			findOpts.SetLimit(opts.Limit)
		}
	}
	cursor, err := c.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return err
	}
	return cursor.All(ctx, out)
}

func (c mongoCollection) InsertOne(ctx context.Context, doc interface{}) error {
	_, err := c.coll.InsertOne(ctx, doc)
	return err
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter M, update M) (int64, error) {
	res, err := c.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (c mongoCollection) UpdateMany(ctx context.Context, filter M, update M) (int64, error) {
	res, err := c.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (c mongoCollection) DeleteOne(ctx context.Context, filter M) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c mongoCollection) DeleteMany(ctx context.Context, filter M) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c mongoCollection) CountDocuments(ctx context.Context, filter M) (int64, error) {
	return c.coll.CountDocuments(ctx, filter)
}
