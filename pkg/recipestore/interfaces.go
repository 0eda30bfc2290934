package recipestore

import (
	"context"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store defines the schema-applying document database surface
type Store interface {
	// ApplyValidator attaches rules as the $jsonSchema validator of an existing
	// collection. It returns an error wrapping ErrNamespaceNotFound when the
	// collection does not exist, and nothing else may wrap that sentinel.
	ApplyValidator(ctx context.Context, collection string, rules bson.M) error

	// CreateCollection creates a collection with rules as its $jsonSchema validator
	CreateCollection(ctx context.Context, collection string, rules bson.M) error

	// Collection returns a handle to the named collection
	Collection(name string) DocumentCollection
}

// DocumentCollection defines document operations on a single collection.
// Writes violating the collection validator fail with *SchemaValidationError.
type DocumentCollection interface {
	InsertOne(ctx context.Context, document bson.M) (interface{}, error)
	// FindOne returns ErrNotFound when no document matches
	FindOne(ctx context.Context, filter bson.M) (bson.M, error)
	Find(ctx context.Context, filter bson.M) ([]bson.M, error)
	DeleteOne(ctx context.Context, filter bson.M) (int64, error)
}

// Bucket defines the binary object store layered on the document database
type Bucket interface {
	// Name returns the bucket name
	Name() string

	// FilesCollection returns the metadata namespace backing the bucket
	FilesCollection() string

	// OpenUploadStream begins a new binary object
	OpenUploadStream(ctx context.Context, filename string, metadata bson.M) (UploadStream, error)

	// OpenDownloadStream returns a sequential reader over a stored object
	OpenDownloadStream(ctx context.Context, storageID primitive.ObjectID) (io.ReadCloser, error)

	// FindByLogicalID looks up the files document whose metadata.id equals logicalID
	FindByLogicalID(ctx context.Context, logicalID string) (*FileDocument, error)

	// SetLogicalID sets metadata.id on the files document of storageID
	SetLogicalID(ctx context.Context, storageID primitive.ObjectID, logicalID string) error
}

// UploadStream is an open write stream for a single binary object.
// Exactly one of Close or Abort releases it.
type UploadStream interface {
	io.Writer

	// Close flushes remaining bytes and writes the files document
	Close() error

	// Abort discards chunks already written
	Abort() error

	// StorageID is the storage-internal id; meaningful once Close succeeded
	StorageID() primitive.ObjectID
}
