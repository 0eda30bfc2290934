package recipestore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

func (s *service) FetchByLogicalID(ctx context.Context, logicalID string) (*FileDocument, error) {
	if logicalID == "" {
		return nil, ErrMissingLogicalID
	}

	file, err := s.bucket.FindByLogicalID(ctx, logicalID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("file %s: %w", logicalID, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to fetch file %s: %w", logicalID, err)
	}
	return file, nil
}

// DownloadByLogicalID opens the object stored under logicalID. The returned
// reader is sequential and single-use; the caller must close it.
func (s *service) DownloadByLogicalID(ctx context.Context, logicalID string) (io.ReadCloser, *FileDocument, error) {
	file, err := s.FetchByLogicalID(ctx, logicalID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.bucket.OpenDownloadStream(ctx, file.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrDownloadStream, err)
	}

	return &downloadReader{ctx: ctx, rc: rc}, file, nil
}

// downloadReader tags mid-stream failures and honours cancellation
type downloadReader struct {
	ctx context.Context
	rc  io.ReadCloser
}

func (d *downloadReader) Read(p []byte) (int, error) {
	if err := d.ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDownloadStream, err)
	}
	n, err := d.rc.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%w: %w", ErrDownloadStream, err)
	}
	return n, err
}

func (d *downloadReader) Close() error {
	return d.rc.Close()
}
