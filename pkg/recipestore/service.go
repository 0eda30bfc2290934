package recipestore

import (
	"context"
	"io"

	"go.mongodb.org/mongo-driver/bson"
)

// Service is the main interface used by the route layer
type Service interface {
	// Binary objects
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
	FetchByLogicalID(ctx context.Context, logicalID string) (*FileDocument, error)
	DownloadByLogicalID(ctx context.Context, logicalID string) (io.ReadCloser, *FileDocument, error)

	// Documents in entity or entity-variant collections
	InsertDocument(ctx context.Context, entity, variant string, document bson.M) (interface{}, error)
	GetDocument(ctx context.Context, entity, variant, id string) (bson.M, error)
	DeleteDocument(ctx context.Context, entity, variant, id string) error
	FindDocuments(ctx context.Context, entity, variant string, filter bson.M) ([]bson.M, error)

	// Recipes
	SearchRecipes(ctx context.Context, language, text string, ingredients []string) ([]bson.M, error)
	Languages() []string
}
