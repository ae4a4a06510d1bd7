package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/tryon/internal/asset"
	"github.com/ivlev/tryon/internal/effects"
	"github.com/ivlev/tryon/internal/export"
	"github.com/ivlev/tryon/internal/placement"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tryon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
session:
  category: outerwear
  height_cm: 180
  overlay_wait: 250ms
  variant:
    color: "#336699"
  filters:
    - id: sepia
      intensity: 0.5
detector:
  backend: fixture
  fixture: testdata/walk.yaml
  multi_person: true
  max_poses: 3
output:
  format: webp
  quality: 80
log:
  level: debug
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, placement.Outerwear, cfg.Session.Category)
	assert.Equal(t, float32(180), cfg.Session.HeightCm)
	assert.Equal(t, 250*time.Millisecond, cfg.Session.OverlayWait)
	assert.Equal(t, "#336699", cfg.Session.Variant.Color)
	require.Len(t, cfg.Session.Filters, 1)
	assert.Equal(t, "sepia", cfg.Session.Filters[0].ID)

	assert.Equal(t, "fixture", cfg.Detector.Backend)
	assert.Equal(t, "testdata/walk.yaml", cfg.Detector.Fixture)
	assert.Equal(t, 3, cfg.Detector.Config.Limit())
	assert.Equal(t, 5, cfg.Detector.SmoothingWindowSize, "untouched fields keep defaults")
	assert.Equal(t, 720, cfg.Session.Width)

	opts, err := cfg.ExportOptions()
	require.NoError(t, err)
	assert.Equal(t, export.WebP, opts.Format)
	assert.Equal(t, 80, opts.Quality)
}

func TestWriteThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tryon.yaml")
	cfg := Default()
	cfg.Session.Category = placement.Footwear
	require.NoError(t, Write(cfg, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, placement.Footwear, got.Session.Category)
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"size", func(c *Config) { c.Session.Width = 0 }},
		{"fps", func(c *Config) { c.Session.FPS = 0 }},
		{"category", func(c *Config) { c.Session.Category = "" }},
		{"height", func(c *Config) { c.Session.HeightCm = -1 }},
		{"filter", func(c *Config) { c.Session.Filters = append(c.Session.Filters, effectSpec("warp-drive")) }},
		{"color", func(c *Config) { c.Session.Variant = variant("not-a-colour") }},
		{"window", func(c *Config) { c.Detector.SmoothingWindowSize = 0 }},
		{"format", func(c *Config) { c.Output.Format = "gif" }},
		{"quality", func(c *Config) { c.Output.Quality = 0 }},
		{"log", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func effectSpec(id string) effects.Spec { return effects.Spec{ID: id, Intensity: 0.5} }

func variant(color string) *asset.Variant { return &asset.Variant{Color: color} }
