package recipestore

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrResourceMissing indicates the schema resource directory does not exist
	ErrResourceMissing = errors.New("schema resource directory missing")

	// ErrNamespaceNotFound indicates a collection does not exist
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrNotFound indicates a document or binary object was not found
	ErrNotFound = errors.New("not found")

	// ErrMissingFilename indicates an upload without a destination filename
	ErrMissingFilename = errors.New("filename is missing")

	// ErrInvalidMetadata indicates caller metadata is not a JSON object
	ErrInvalidMetadata = errors.New("invalid metadata")

	// ErrMissingLogicalID indicates an upload without a logical id
	ErrMissingLogicalID = errors.New("logical id is missing")

	// ErrDuplicateID indicates a binary object with the logical id already exists
	ErrDuplicateID = errors.New("logical id already exists")

	// ErrUploadStream indicates the upload stream failed
	ErrUploadStream = errors.New("upload stream failed")

	// ErrUploadCancelled indicates the caller cancelled an in-flight upload
	ErrUploadCancelled = errors.New("upload cancelled")

	// ErrDownloadStream indicates the download stream failed
	ErrDownloadStream = errors.New("download stream failed")

	// ErrMetadataCommit indicates the logical id could not be recorded after a
	// successful stream. The object bytes remain stored.
	ErrMetadataCommit = errors.New("metadata commit failed")

	// ErrInvalidID indicates a malformed document id
	ErrInvalidID = errors.New("invalid id")

	// ErrInvalidDocument indicates a document that could not be decoded
	ErrInvalidDocument = errors.New("invalid document")

	// ErrUnknownVariant indicates a variant that is not configured
	ErrUnknownVariant = errors.New("unknown variant")
)

// SchemaParseError represents a schema file that is not a well-formed schema document
type SchemaParseError struct {
	File string
	Err  error
}

func (e *SchemaParseError) Error() string {
	return fmt.Sprintf("parse schema %s: %v", e.File, e.Err)
}

func (e *SchemaParseError) Unwrap() error {
	return e.Err
}

// ProvisioningError represents a schema reconciliation failure other than a missing collection
type ProvisioningError struct {
	Collection string
	Err        error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provision collection %s: %v", e.Collection, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// SchemaValidationCode is the database error code for a document failing validation
const SchemaValidationCode = 121

// SchemaValidationError represents a write rejected by a collection validator.
// Details carries the database's structured violation report.
type SchemaValidationError struct {
	Collection string
	Code       int
	Message    string
	Details    map[string]interface{}
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("document failed validation in %s (code %d): %s", e.Collection, e.Code, e.Message)
}

// UploadError represents a failed upload and the state it failed in
type UploadError struct {
	LogicalID string
	State     UploadState
	Err       error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s failed while %s: %v", e.LogicalID, e.State, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// DocumentError represents an error related to document operations
type DocumentError struct {
	Collection string
	Op         string
	Err        error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document operation %s failed on %s: %v", e.Op, e.Collection, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}
