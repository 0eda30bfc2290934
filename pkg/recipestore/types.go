package recipestore

import (
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// EntityFile names the schema backing the bucket metadata namespace
	EntityFile = "file"

	// EntityRecipe names the schema provisioned once per language
	EntityRecipe = "recipe"

	// DefaultBucketName is the bucket used for uploaded images
	DefaultBucketName = "__image_filebucket"
)

// Schema is a validation rule-set loaded for one entity
type Schema struct {
	Entity string
	File   string
	Rules  bson.M
}

// Validator wraps the rules the way the database expects them on a collection
func (s *Schema) Validator() bson.M {
	return bson.M{"$jsonSchema": s.Rules}
}

// FileDocument is the metadata document stored alongside a binary object
type FileDocument struct {
	ID         primitive.ObjectID     `bson:"_id" json:"_id"`
	Length     int64                  `bson:"length" json:"length"`
	ChunkSize  int32                  `bson:"chunkSize" json:"chunkSize"`
	UploadDate time.Time              `bson:"uploadDate" json:"uploadDate"`
	Filename   string                 `bson:"filename" json:"filename"`
	Metadata   map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// LogicalID returns metadata.id, or "" when unset
func (f *FileDocument) LogicalID() string {
	id, _ := f.Metadata[MetadataIDKey].(string)
	return id
}

const (
	// MetadataIDKey is the metadata field holding the logical id
	MetadataIDKey = "id"

	// MetadataCreatedKey is the metadata field holding the creation time
	MetadataCreatedKey = "created"
)

// UploadState is a state of the upload state machine
type UploadState string

const (
	UploadStateValidating       UploadState = "validating"
	UploadStateCheckingExisting UploadState = "checking_existing"
	UploadStateStreaming        UploadState = "streaming"
	UploadStateFinalizing       UploadState = "finalizing"
	UploadStateDone             UploadState = "done"
	UploadStateFailed           UploadState = "failed"
)

// UploadRequest contains parameters for uploading a binary object
type UploadRequest struct {
	LogicalID string
	Filename  string
	// Metadata is caller-supplied JSON; empty means no extra metadata
	Metadata string
	Reader   io.Reader
}

// UploadOutcome tags the result of an upload attempt
type UploadOutcome string

const (
	UploadOutcomeCreated           UploadOutcome = "created"
	UploadOutcomeDuplicateRejected UploadOutcome = "duplicate_rejected"
)

// UploadResult is returned from a successful upload
type UploadResult struct {
	LogicalID string             `json:"id"`
	StorageID primitive.ObjectID `json:"-"`
	Outcome   UploadOutcome      `json:"-"`
}

// CollectionName returns the collection for an entity, or its variant collection
// "<entity>-<variant>" with the variant lower-cased.
func CollectionName(entity, variant string) string {
	if variant == "" {
		return entity
	}
	return entity + "-" + strings.ToLower(variant)
}
