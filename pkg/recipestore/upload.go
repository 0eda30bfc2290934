package recipestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Upload stores req.Reader as a new binary object under req.LogicalID.
//
// The existence check and the stream open are separate operations against the
// store, so two concurrent uploads of the same logical id may both pass the
// check. Rejection of duplicates is best-effort; a unique index on
// metadata.id in the database is what makes it strict.
//
// If recording the logical id fails after the bytes are stored, Upload returns
// ErrMetadataCommit. The stored object keeps the id written with its pending
// metadata, so it is still found by req.LogicalID and a retry with the same
// id is rejected with ErrDuplicateID.
func (s *service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	u := &uploadSession{
		ctx:       ctx,
		svc:       s,
		logicalID: req.LogicalID,
	}
	u.transition(UploadStateValidating)

	if req.Filename == "" {
		return nil, u.fail(ErrMissingFilename)
	}
	if req.LogicalID == "" {
		return nil, u.fail(ErrMissingLogicalID)
	}
	if req.Reader == nil {
		return nil, u.fail(errors.New("reader is required"))
	}
	userMetadata, err := parseMetadata(req.Metadata)
	if err != nil {
		return nil, u.fail(fmt.Errorf("%w: %v", ErrInvalidMetadata, err))
	}

	u.transition(UploadStateCheckingExisting)
	existing, err := s.lookup(ctx, req.LogicalID)
	if err != nil {
		return nil, u.fail(fmt.Errorf("failed to check existing file: %w", err))
	}
	if existing == lookupDuplicate {
		return &UploadResult{
			LogicalID: req.LogicalID,
			Outcome:   UploadOutcomeDuplicateRejected,
		}, u.fail(ErrDuplicateID)
	}

	u.transition(UploadStateStreaming)
	metadata := pendingMetadata(userMetadata, req.LogicalID, s.now().UTC())
	stream, err := s.bucket.OpenUploadStream(ctx, req.Filename, metadata)
	if err != nil {
		return nil, u.fail(fmt.Errorf("%w: %w", ErrUploadStream, err))
	}
	if err := u.copy(stream, req.Reader); err != nil {
		return nil, u.fail(err)
	}
	storageID := stream.StorageID()

	// The bytes are durable at this point; a caller hanging up must not
	// leave the object without its logical id.
	u.transition(UploadStateFinalizing)
	if err := s.bucket.SetLogicalID(context.WithoutCancel(ctx), storageID, req.LogicalID); err != nil {
		s.logger.Error("Stored file is not reachable by its logical id",
			"id", req.LogicalID, "storage_id", storageID.Hex(), "err", err)
		return nil, u.fail(fmt.Errorf("%w: %w", ErrMetadataCommit, err))
	}

	u.transition(UploadStateDone)
	result := &UploadResult{
		LogicalID: req.LogicalID,
		StorageID: storageID,
		Outcome:   UploadOutcomeCreated,
	}
	s.logger.Info("File uploaded", "id", req.LogicalID, "storage_id", storageID.Hex(), "filename", req.Filename)
	s.hooks.afterUpload(ctx, result)
	return result, nil
}

// uploadSession tracks the state of a single upload call
type uploadSession struct {
	ctx       context.Context
	svc       *service
	logicalID string
	state     UploadState
}

func (u *uploadSession) transition(to UploadState) {
	from := u.state
	u.state = to
	u.svc.hooks.uploadState(u.ctx, u.logicalID, from, to)
}

func (u *uploadSession) fail(err error) error {
	uerr := &UploadError{LogicalID: u.logicalID, State: u.state, Err: err}
	u.transition(UploadStateFailed)
	u.svc.logger.Warn("Upload failed", "id", u.logicalID, "state", string(uerr.State), "err", err)
	u.svc.hooks.uploadFailed(u.ctx, uerr)
	return uerr
}

// copy pipes r into stream and closes it. On any failure the stream is
// aborted and the original failure is returned.
func (u *uploadSession) copy(stream UploadStream, r io.Reader) error {
	released := false
	defer func() {
		if !released {
			u.abort(stream, errors.New("upload interrupted"))
		}
	}()

	_, err := io.Copy(stream, &contextReader{ctx: u.ctx, r: r})
	if err == nil {
		err = stream.Close()
	}
	if err == nil {
		released = true
		return nil
	}

	u.abort(stream, err)
	released = true

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w: %w", ErrUploadStream, ErrUploadCancelled, err)
	}
	return fmt.Errorf("%w: %w", ErrUploadStream, err)
}

func (u *uploadSession) abort(stream UploadStream, cause error) {
	u.svc.logger.Error("Upload stream failed, aborting to delete chunks", "id", u.logicalID, "reason", cause)
	if err := stream.Abort(); err != nil {
		u.svc.logger.Error("Abort failed", "id", u.logicalID, "err", err)
	}
}

type lookupResult int

const (
	lookupAbsent lookupResult = iota
	lookupDuplicate
)

func (s *service) lookup(ctx context.Context, logicalID string) (lookupResult, error) {
	_, err := s.bucket.FindByLogicalID(ctx, logicalID)
	switch {
	case err == nil:
		return lookupDuplicate, nil
	case errors.Is(err, ErrNotFound):
		return lookupAbsent, nil
	default:
		return lookupAbsent, err
	}
}

// parseMetadata decodes caller metadata, which must be a JSON object
func parseMetadata(raw string) (map[string]interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]interface{}{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var metadata map[string]interface{}
	if err := dec.Decode(&metadata); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after metadata object")
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return metadata, nil
}

// pendingMetadata merges caller metadata with the reserved id and created keys
func pendingMetadata(user map[string]interface{}, logicalID string, created interface{}) bson.M {
	metadata := make(bson.M, len(user)+2)
	for k, v := range user {
		metadata[k] = v
	}
	metadata[MetadataIDKey] = logicalID
	metadata[MetadataCreatedKey] = created
	return metadata
}

// contextReader stops reading once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
