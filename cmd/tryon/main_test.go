package main

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/tryon/internal/config"
	"github.com/ivlev/tryon/internal/placement"
)

func TestParseFilters(t *testing.T) {
	specs, err := parseFilters("sepia:0.5, blur,,")
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "sepia", specs[0].ID)
	assert.Equal(t, float32(0.5), specs[0].Intensity)
	assert.Equal(t, "blur", specs[1].ID)
	assert.Equal(t, float32(1), specs[1].Intensity)

	_, err = parseFilters("sepia:lots")
	assert.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, applyFlags(&cfg, "coat.png", "outerwear", 175, "warm", "jpeg", "out.mp4"))
	assert.Equal(t, "coat.png", cfg.Session.Asset)
	assert.Equal(t, placement.Outerwear, cfg.Session.Category)
	assert.Equal(t, float32(175), cfg.Session.HeightCm)
	assert.Equal(t, "warm", cfg.Session.Filters[0].ID)
	assert.Equal(t, "jpeg", cfg.Output.Format)
	assert.Equal(t, "out.mp4", cfg.Output.Record)
	assert.NoError(t, cfg.Validate())
}

func TestAutoOutputName(t *testing.T) {
	name := autoOutputName("input/my photo.jpg", "webp")
	assert.True(t, strings.HasPrefix(name, "output/my_photo_"))
	assert.True(t, strings.HasSuffix(name, ".webp"))
}

func TestLoadBackground(t *testing.T) {
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(broken, []byte("not an image"), 0644))
	_, err := loadBackground(context.Background(), broken)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "фон:"))

	good := filepath.Join(dir, "studio.png")
	f, err := os.Create(good)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 8, 6))))
	require.NoError(t, f.Close())

	img, err := loadBackground(context.Background(), good)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = loadBackground(ctx, good)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "фон:"))
}
