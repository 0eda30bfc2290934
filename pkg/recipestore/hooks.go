package recipestore

import "context"

// Hooks allow observing the upload lifecycle without modifying core code.
// Hooks run synchronously on the calling goroutine.
type Hooks struct {
	// OnUploadState is called on every upload state transition
	OnUploadState []UploadStateHook

	// AfterUpload is called once an upload reached the done state
	AfterUpload []AfterUploadHook

	// OnError is called when an upload ends in the failed state
	OnError []ErrorHook
}

// UploadStateHook is called when an upload moves from one state to another
type UploadStateHook func(ctx context.Context, logicalID string, from, to UploadState)

// AfterUploadHook is called after an object was stored and its logical id committed
type AfterUploadHook func(ctx context.Context, result *UploadResult)

// ErrorHook is called with the error an upload failed with
type ErrorHook func(ctx context.Context, err *UploadError)

func (h *Hooks) uploadState(ctx context.Context, logicalID string, from, to UploadState) {
	if h == nil {
		return
	}
	for _, hook := range h.OnUploadState {
		hook(ctx, logicalID, from, to)
	}
}

func (h *Hooks) afterUpload(ctx context.Context, result *UploadResult) {
	if h == nil {
		return
	}
	for _, hook := range h.AfterUpload {
		hook(ctx, result)
	}
}

func (h *Hooks) uploadFailed(ctx context.Context, err *UploadError) {
	if h == nil {
		return
	}
	for _, hook := range h.OnError {
		hook(ctx, err)
	}
}
