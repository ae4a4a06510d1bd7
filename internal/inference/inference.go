// Package inference wraps the keypoint detector and person segmenter behind
// explicitly owned handles. A handle is created, initialised with a config,
// called per frame and disposed exactly once; calls after disposal fail with
// ErrDisposed instead of touching released resources.
package inference

import (
	"context"
	"fmt"
	"image"

	"github.com/pkg/errors"

	"github.com/ivlev/tryon/internal/pose"
)

var (
	// ErrDisposed is returned by any call on a disposed handle. It signals a
	// lifecycle bug in the caller.
	ErrDisposed = errors.New("inference handle used after dispose")
	// ErrNotReady is returned before Init succeeds.
	ErrNotReady = errors.New("inference handle not initialised")
)

// UnavailableError reports an input that could not be produced for this
// frame. Rendering continues without pose-dependent features.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Unavailable wraps err unless it is nil or a lifecycle violation.
func Unavailable(op string, err error) error {
	if err == nil || errors.Is(err, ErrDisposed) {
		return err
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	return &UnavailableError{Op: op, Err: err}
}

// IsFatal reports whether err must stop the session.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDisposed)
}

// Detector produces subjects for a frame.
type Detector interface {
	Init(cfg Config) error
	Detect(ctx context.Context, frame image.Image) ([]pose.Subject, error)
	Dispose() error
}

// Segmenter produces a person mask the size of the frame.
type Segmenter interface {
	Init(cfg Config) error
	Segment(ctx context.Context, frame image.Image) (*image.Gray, error)
	Dispose() error
}
