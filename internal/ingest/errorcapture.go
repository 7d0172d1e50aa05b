package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/tca/internal/storage"
	"github.com/cuemby/tca/internal/types"
)

// ErrStageCaptured is returned by WithErrorCapture in place of the
// original stage error once it has been durably recorded as an
// IngestError row — the pipeline's "capture and continue" sentinel
// (spec.md §4.5, §7), grounded on
// original_source/tca/ingest/error_capture.py's execute_with_ingest_error_capture.
var ErrStageCaptured = errors.New("ingest: stage error captured, continuing")

// WithErrorCapture runs op and, on a recoverable failure, persists an
// IngestError row through the writer queue and returns ErrStageCaptured
// instead of op's error so the caller can move on to the next item.
// Context cancellation is never captured: it propagates unchanged, per
// spec.md §5's "cancellation must never be remapped into a typed domain
// error".
func WithErrorCapture(
	ctx context.Context,
	errorsRepo *storage.IngestErrorRepo,
	channelID *int64,
	stage types.IngestStage,
	errorCode string,
	payloadRef string,
	now func() time.Time,
	op func() error,
) error {
	err := op()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if _, capErr := errorsRepo.Create(ctx, &types.IngestError{
		ChannelID:    channelID,
		Stage:        stage,
		ErrorCode:    errorCode,
		ErrorMessage: err.Error(),
		PayloadRef:   payloadRef,
		CreatedAt:    now(),
	}); capErr != nil {
		return capErr
	}
	return ErrStageCaptured
}
