package source

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w int) {
	img := image.NewRGBA(image.Rect(0, 0, w, 10))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestOpenImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	writePNG(t, path, 20)

	src, err := Open(path, 0)
	require.NoError(t, err)
	defer src.Close()

	assert.IsType(t, &ImageSource{}, src)
	assert.False(t, src.Live())
	img, err := src.Frame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
}

func TestSequenceLoops(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 30)
	writePNG(t, filepath.Join(dir, "a.png"), 20)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	src, err := Open(dir, 0)
	require.NoError(t, err)
	seq := src.(*SequenceSource)
	assert.True(t, seq.Live())
	assert.Equal(t, 2, seq.Len())

	ctx := context.Background()
	var widths []int
	for i := 0; i < 3; i++ {
		img, err := seq.Frame(ctx)
		require.NoError(t, err)
		widths = append(widths, img.Bounds().Dx())
	}
	assert.Equal(t, []int{20, 30, 20}, widths)
}

func TestOpenRejects(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(filepath.Join(dir, "missing.png"), 0)
	assert.Error(t, err)

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0644))
	_, err = Open(txt, 0)
	assert.Error(t, err)

	_, err = NewSequenceSource(dir)
	assert.Error(t, err, "directory without images")
}

func TestStatic(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	s := NewStatic(img, true)
	assert.True(t, s.Live())

	got, err := s.Frame(context.Background())
	require.NoError(t, err)
	assert.Same(t, img, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Frame(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
	_, err = s.Frame(context.Background())
	assert.Error(t, err)
}
