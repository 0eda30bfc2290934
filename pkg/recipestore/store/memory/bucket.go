package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tendant/recipe-store/pkg/recipestore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrStreamClosed is returned when using a stream after Close or Abort
var ErrStreamClosed = errors.New("stream is closed or aborted")

const defaultChunkSize = 255 * 1024

// Bucket is an in-memory implementation of recipestore.Bucket. Object bytes
// live in the bucket, files documents in the "<name>.files" collection.
type Bucket struct {
	db   *Database
	name string

	mu     sync.RWMutex
	chunks map[primitive.ObjectID][]byte
}

// Bucket returns the named bucket, creating it on first use
func (d *Database) Bucket(name string) *Bucket {
	if name == "" {
		name = recipestore.DefaultBucketName
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if b, ok := d.buckets[name]; ok {
		return b
	}
	b := &Bucket{
		db:     d,
		name:   name,
		chunks: make(map[primitive.ObjectID][]byte),
	}
	d.buckets[name] = b
	return b
}

func (b *Bucket) Name() string {
	return b.name
}

func (b *Bucket) FilesCollection() string {
	return b.name + ".files"
}

func (b *Bucket) files() *collectionHandle {
	return &collectionHandle{db: b.db, name: b.FilesCollection()}
}

func (b *Bucket) OpenUploadStream(ctx context.Context, filename string, metadata bson.M) (recipestore.UploadStream, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	return &uploadStream{
		bucket:   b,
		id:       primitive.NewObjectID(),
		filename: filename,
		metadata: metadata,
	}, nil
}

func (b *Bucket) OpenDownloadStream(ctx context.Context, storageID primitive.ObjectID) (io.ReadCloser, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	data, ok := b.chunks[storageID]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("file %s: %w", storageID.Hex(), recipestore.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *Bucket) FindByLogicalID(ctx context.Context, logicalID string) (*recipestore.FileDocument, error) {
	doc, err := b.files().FindOne(ctx, bson.M{"metadata." + recipestore.MetadataIDKey: logicalID})
	if err != nil {
		return nil, err
	}

	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var file recipestore.FileDocument
	if err := bson.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode files document: %w", err)
	}
	return &file, nil
}

func (b *Bucket) SetLogicalID(ctx context.Context, storageID primitive.ObjectID, logicalID string) error {
	matched, err := b.files().updateSet(bson.M{"_id": storageID}, "metadata."+recipestore.MetadataIDKey, logicalID)
	if err != nil {
		return err
	}
	if matched == 0 {
		return fmt.Errorf("files document %s: %w", storageID.Hex(), recipestore.ErrNotFound)
	}
	return nil
}

// Len returns the number of stored objects, including ones without a files document
func (b *Bucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.chunks)
}

func (b *Bucket) checkOpen() error {
	b.db.mu.RLock()
	defer b.db.mu.RUnlock()
	return b.db.checkOpen()
}

// uploadStream buffers written bytes and commits them on Close
type uploadStream struct {
	bucket   *Bucket
	id       primitive.ObjectID
	filename string
	metadata bson.M

	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (s *uploadStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStreamClosed
	}
	return s.buf.Write(p)
}

// Close stores the bytes, then inserts the files document, which is checked
// against the files collection validator
func (s *uploadStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}

	data := make([]byte, s.buf.Len())
	copy(data, s.buf.Bytes())

	s.bucket.mu.Lock()
	s.bucket.chunks[s.id] = data
	s.bucket.mu.Unlock()

	doc := bson.M{
		"_id":        s.id,
		"length":     int64(len(data)),
		"chunkSize":  int32(defaultChunkSize),
		"uploadDate": primitive.NewDateTimeFromTime(time.Now()),
		"filename":   s.filename,
	}
	if s.metadata != nil {
		doc["metadata"] = s.metadata
	}
	if _, err := s.bucket.files().InsertOne(context.Background(), doc); err != nil {
		return err
	}

	s.closed = true
	return nil
}

// Abort discards the object's bytes
func (s *uploadStream) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.closed = true
	s.buf.Reset()

	s.bucket.mu.Lock()
	delete(s.bucket.chunks, s.id)
	s.bucket.mu.Unlock()
	return nil
}

func (s *uploadStream) StorageID() primitive.ObjectID {
	return s.id
}
