// Package mongo implements the recipestore storage surface on MongoDB:
// collections carry $jsonSchema validators and binary objects live in a
// GridFS bucket.
//
// The Client owns the connection. Create it once at startup and pass its
// Store and Bucket to the components that need database access:
//
//	client, err := mongo.Connect(ctx, mongo.Config{URI: uri, Database: "recipes"})
//	defer client.Close(ctx)
//	svc, err := recipestore.New(
//		recipestore.WithStore(client.Store()),
//		recipestore.WithBucket(client.Bucket()),
//	)
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tendant/recipe-store/pkg/recipestore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config options for the MongoDB connection
type Config struct {
	URI            string        // Connection string including credentials and authSource
	Database       string        // Database name; defaults to the one in URI
	BucketName     string        // GridFS bucket name
	ConnectTimeout time.Duration // Optional connect timeout
	Logger         *slog.Logger
}

// Client owns the database connection and the storage built on it
type Client struct {
	client *mongo.Client
	db     *mongo.Database
	store  *Store
	bucket *Bucket
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// handshake is the reply of the whatsmyuri command
type handshake struct {
	You string  `bson:"you"`
	Ok  float64 `bson:"ok"`
}

// Connect opens the connection, verifies it with a handshake, and prepares
// the GridFS bucket and its indexes
func Connect(ctx context.Context, config Config) (*Client, error) {
	if config.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := options.Client().ApplyURI(config.URI)
	if config.ConnectTimeout > 0 {
		opts.SetConnectTimeout(config.ConnectTimeout)
		opts.SetServerSelectionTimeout(config.ConnectTimeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	dbName := config.Database
	if dbName == "" {
		name, err := parseDatabase(config.URI)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		dbName = name
	}
	db := client.Database(dbName)

	var info handshake
	if err := db.RunCommand(ctx, bson.D{{Key: "whatsmyuri", Value: 1}}).Decode(&info); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to handshake with mongodb: %w", err)
	}
	logger.Info("Connected to mongodb", "database", db.Name(), "ip", info.You, "status", info.Ok == 1)

	bucketName := config.BucketName
	if bucketName == "" {
		bucketName = recipestore.DefaultBucketName
	}
	gfs, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to open gridfs bucket %s: %w", bucketName, err)
	}

	bucket := &Bucket{db: db, bucket: gfs, name: bucketName}
	if err := bucket.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return &Client{
		client: client,
		db:     db,
		store:  &Store{db: db},
		bucket: bucket,
		logger: logger,
	}, nil
}

// Store returns the schema-applying document store
func (c *Client) Store() *Store {
	return c.store
}

// Bucket returns the binary object bucket
func (c *Client) Bucket() *Bucket {
	return c.bucket
}

// Database returns the underlying database handle
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Close releases the connection. It is safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.logger.Info("Closing database")
		c.closeErr = c.client.Disconnect(ctx)
	})
	return c.closeErr
}

// parseDatabase extracts the default database from the uri path
func parseDatabase(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid mongo uri: %w", err)
	}
	name := strings.TrimPrefix(u.Path, "/")
	if name == "" {
		return "", errors.New("mongo database name is required")
	}
	return name, nil
}
