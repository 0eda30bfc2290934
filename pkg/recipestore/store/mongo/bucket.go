package mongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tendant/recipe-store/pkg/recipestore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Bucket implements recipestore.Bucket on a GridFS bucket
type Bucket struct {
	db     *mongo.Database
	bucket *gridfs.Bucket
	name   string

	// gridfs.Bucket tracks its first write in an unguarded field
	openMu sync.Mutex
}

func (b *Bucket) Name() string {
	return b.name
}

func (b *Bucket) FilesCollection() string {
	return b.name + ".files"
}

func (b *Bucket) files() *mongo.Collection {
	return b.db.Collection(b.FilesCollection())
}

func (b *Bucket) OpenUploadStream(ctx context.Context, filename string, metadata bson.M) (recipestore.UploadStream, error) {
	opts := options.GridFSUpload().SetMetadata(metadata)
	b.openMu.Lock()
	us, err := b.bucket.OpenUploadStream(filename, opts)
	b.openMu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := applyDeadline(ctx, us.SetWriteDeadline); err != nil {
		_ = us.Abort()
		return nil, err
	}
	return &uploadStream{us: us, files: b.FilesCollection()}, nil
}

func (b *Bucket) OpenDownloadStream(ctx context.Context, storageID primitive.ObjectID) (io.ReadCloser, error) {
	ds, err := b.bucket.OpenDownloadStream(storageID)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, fmt.Errorf("file %s: %w", storageID.Hex(), recipestore.ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	if err := applyDeadline(ctx, ds.SetReadDeadline); err != nil {
		_ = ds.Close()
		return nil, err
	}
	return ds, nil
}

// applyDeadline hands the context deadline to a GridFS stream, whose reads
// and writes do not take a context
func applyDeadline(ctx context.Context, set func(time.Time) error) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	return set(deadline)
}

// gridfsIndexes are the indexes the driver creates on a bucket's first write
func gridfsIndexes() (files, chunks mongo.IndexModel) {
	files = mongo.IndexModel{
		Keys: bson.D{{Key: "filename", Value: int32(1)}, {Key: "uploadDate", Value: int32(1)}},
	}
	chunks = mongo.IndexModel{
		Keys:    bson.D{{Key: "files_id", Value: int32(1)}, {Key: "n", Value: int32(1)}},
		Options: options.Index().SetUnique(true),
	}
	return files, chunks
}

// ensureIndexes creates the files and chunks indexes ahead of the first
// upload. Creating an index that already exists with the same keys is a
// no-op on the server.
func (b *Bucket) ensureIndexes(ctx context.Context) error {
	files, chunks := gridfsIndexes()
	if _, err := b.files().Indexes().CreateOne(ctx, files); err != nil {
		return fmt.Errorf("failed to index %s: %w", b.FilesCollection(), err)
	}
	if _, err := b.db.Collection(b.name + ".chunks").Indexes().CreateOne(ctx, chunks); err != nil {
		return fmt.Errorf("failed to index %s.chunks: %w", b.name, err)
	}
	return nil
}

func (b *Bucket) FindByLogicalID(ctx context.Context, logicalID string) (*recipestore.FileDocument, error) {
	var file recipestore.FileDocument
	filter := bson.M{"metadata." + recipestore.MetadataIDKey: logicalID}
	err := b.files().FindOne(ctx, filter).Decode(&file)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, recipestore.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &file, nil
}

func (b *Bucket) SetLogicalID(ctx context.Context, storageID primitive.ObjectID, logicalID string) error {
	update := bson.M{"$set": bson.M{"metadata." + recipestore.MetadataIDKey: logicalID}}
	res, err := b.files().UpdateOne(ctx, bson.M{"_id": storageID}, update)
	if err != nil {
		return translateWriteError(b.FilesCollection(), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("files document %s: %w", storageID.Hex(), recipestore.ErrNotFound)
	}
	return nil
}

// uploadStream adapts *gridfs.UploadStream to recipestore.UploadStream
type uploadStream struct {
	us    *gridfs.UploadStream
	files string
}

func (s *uploadStream) Write(p []byte) (int, error) {
	return s.us.Write(p)
}

func (s *uploadStream) Close() error {
	if err := s.us.Close(); err != nil {
		return translateWriteError(s.files, err)
	}
	return nil
}

func (s *uploadStream) Abort() error {
	return s.us.Abort()
}

func (s *uploadStream) StorageID() primitive.ObjectID {
	id, _ := s.us.FileID.(primitive.ObjectID)
	return id
}
