package perception

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrModelLoad means model assets could not be loaded. Detection stays
	// disabled for the rest of the process lifetime.
	ErrModelLoad = errors.New("perception: model load failed")

	// ErrNotReady is returned when a provider is used before its models loaded.
	ErrNotReady = errors.New("perception: models not ready")

	// ErrInvalidFrame is returned for frames with a mismatched pixel buffer.
	ErrInvalidFrame = errors.New("perception: invalid frame")
)

// FaceProvider detects faces and classifies their expressions.
type FaceProvider interface {
	DetectFaces(ctx context.Context, frame Frame) ([]FaceDetection, error)
}

// ObjectProvider detects generic objects.
type ObjectProvider interface {
	DetectObjects(ctx context.Context, frame Frame) ([]ObjectDetection, error)
}

// ProviderError reports a failed provider call for a single frame.
// The detection loop skips that provider's result and keeps running.
type ProviderError struct {
	Provider string // "face" or "object"
	Seq      uint64
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("perception: %s provider failed on frame %d: %v", e.Provider, e.Seq, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err is a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
