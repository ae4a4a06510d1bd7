package asset

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/tryon/internal/placement"
)

func encodePNG(t *testing.T) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.NRGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLoadDecodesPNG(t *testing.T) {
	f := Load(context.Background(), Asset{Bytes: encodePNG(t), Category: placement.Top})
	img, err := f.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
	assert.True(t, f.Done())
}

func TestLoadDecodesWebP(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	require.NoError(t, webp.Encode(&buf, src, &webp.Options{Lossless: true}))

	img, err := Load(context.Background(), Asset{Bytes: buf.Bytes()}).Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestLoadReportsDecodeFailure(t *testing.T) {
	_, err := Load(context.Background(), Asset{Bytes: []byte("not an image")}).Wait(context.Background(), time.Second)
	assert.Error(t, err)

	_, err = Load(context.Background(), Asset{}).Wait(context.Background(), time.Second)
	assert.Error(t, err)
}

func TestWaitTimesOut(t *testing.T) {
	f := &Future{done: make(chan struct{})}

	_, err := f.Wait(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	_, err = f.Wait(context.Background(), 0)
	assert.ErrorIs(t, err, ErrTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Wait(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadyAndFailed(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	got, err := Ready(img).Wait(context.Background(), 0)
	require.NoError(t, err)
	assert.Same(t, img, got)

	_, err = Failed(ErrTimeout).Wait(context.Background(), 0)
	assert.ErrorIs(t, err, ErrTimeout)
}
