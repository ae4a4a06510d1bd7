// Package asset loads wearable overlay images. Loading returns a Future the
// compositor waits on with a deadline instead of a ready callback.
package asset

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	_ "github.com/chai2010/webp"
	"github.com/pkg/errors"

	"github.com/ivlev/tryon/internal/placement"
)

var ErrTimeout = errors.New("asset not ready before deadline")

// Variant is the selected product option. Color re-tints the overlay.
type Variant struct {
	Color string `yaml:"color,omitempty"`
	Size  string `yaml:"size,omitempty"`
	Style string `yaml:"style,omitempty"`
}

// Asset is an encoded overlay image plus its placement category.
type Asset struct {
	Bytes    []byte
	Category placement.Category
	Variant  *Variant
}

// ReadFile loads asset bytes from disk.
func ReadFile(path string, category placement.Category, variant *Variant) (Asset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Asset{}, errors.Wrap(err, "read asset")
	}
	return Asset{Bytes: b, Category: category, Variant: variant}, nil
}

// Decode decodes PNG, JPEG or WebP bytes.
func Decode(b []byte) (image.Image, error) {
	if len(b) == 0 {
		return nil, errors.New("empty asset")
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrap(err, "decode asset")
	}
	return img, nil
}

// Future is the result of an asynchronous asset decode.
type Future struct {
	done chan struct{}
	img  image.Image
	err  error
}

// Load starts decoding a in the background. Cancelling ctx abandons the
// result.
func Load(ctx context.Context, a Asset) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		img, err := Decode(a.Bytes)
		if ctxErr := ctx.Err(); ctxErr != nil {
			f.err = errors.Wrap(ctxErr, "asset load cancelled")
			return
		}
		f.img, f.err = img, err
	}()
	return f
}

// Ready returns an already-resolved future.
func Ready(img image.Image) *Future {
	f := &Future{done: make(chan struct{}), img: img}
	close(f.done)
	return f
}

// Failed returns a future resolved with err.
func Failed(err error) *Future {
	f := &Future{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// Done reports whether the future has resolved.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the image is decoded, timeout elapses or ctx ends.
// A timeout of zero only checks whether the result is already there.
func (f *Future) Wait(ctx context.Context, timeout time.Duration) (image.Image, error) {
	if f.Done() {
		return f.img, f.err
	}
	if timeout <= 0 {
		return nil, ErrTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.img, f.err
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "waiting for asset")
	}
}
