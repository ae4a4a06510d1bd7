// Package config loads the YAML configuration of a try-on session.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/tryon/internal/asset"
	"github.com/ivlev/tryon/internal/effects"
	"github.com/ivlev/tryon/internal/export"
	"github.com/ivlev/tryon/internal/inference"
	"github.com/ivlev/tryon/internal/placement"
	"github.com/ivlev/tryon/internal/renderer"
)

type Config struct {
	Session   SessionConfig   `yaml:"session"`
	Detector  DetectorConfig  `yaml:"detector"`
	Segmenter SegmenterConfig `yaml:"segmenter"`
	Output    OutputConfig    `yaml:"output"`
	Log       LogConfig       `yaml:"log"`
}

type SessionConfig struct {
	Width    int                `yaml:"width"`
	Height   int                `yaml:"height"`
	FPS      int                `yaml:"fps"`
	Category placement.Category `yaml:"category"`
	// HeightCm is the user's known height; zero means estimate from the pose.
	HeightCm    float32              `yaml:"height_cm"`
	Asset       string               `yaml:"asset"`
	Variant     *asset.Variant       `yaml:"variant,omitempty"`
	Adjustments renderer.Adjustments `yaml:"adjustments"`
	// Background is an image used by background replacement passes.
	Background   string         `yaml:"background"`
	OverlayWait  time.Duration  `yaml:"overlay_wait"`
	Filters      []effects.Spec `yaml:"filters"`
	SignalBuffer int            `yaml:"signal_buffer"`
	DPI          int            `yaml:"dpi"`
}

type DetectorConfig struct {
	Backend           string `yaml:"backend"`
	inference.Config  `yaml:",inline"`
	inference.Options `yaml:",inline"`
}

type SegmenterConfig struct {
	Backend           string `yaml:"backend"`
	inference.Options `yaml:",inline"`
}

type OutputConfig struct {
	Path     string `yaml:"path"`
	Format   string `yaml:"format"`
	Quality  int    `yaml:"quality"`
	Lossless bool   `yaml:"lossless"`
	ShareURL string `yaml:"share_url"`
	QRSize   int    `yaml:"qr_size"`
	Record   string `yaml:"record"`
	Encoder  string `yaml:"encoder"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

func Default() Config {
	return Config{
		Session: SessionConfig{
			Width:        720,
			Height:       1280,
			FPS:          30,
			Category:     placement.Top,
			Adjustments:  renderer.DefaultAdjustments(),
			OverlayWait:  renderer.DefaultOverlayWait,
			SignalBuffer: 16,
			DPI:          150,
		},
		Detector: DetectorConfig{
			Backend: "onnx",
			Config:  inference.DefaultConfig(),
			Options: inference.Options{Model: "models/yolov8n-pose.onnx"},
		},
		Segmenter: SegmenterConfig{
			Backend: "onnx",
			Options: inference.Options{Model: "models/selfie_segmentation.onnx"},
		},
		Output: OutputConfig{
			Format:  string(export.PNG),
			Quality: 90,
		},
		Log: LogConfig{Level: "info", Console: true},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Write saves cfg as YAML.
func Write(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c Config) Validate() error {
	s := c.Session
	if s.Width <= 0 || s.Height <= 0 {
		return errors.Errorf("session: invalid output size %dx%d", s.Width, s.Height)
	}
	if s.FPS <= 0 {
		return errors.Errorf("session: fps must be positive, got %d", s.FPS)
	}
	if s.Category == "" {
		return errors.New("session: category is required")
	}
	if s.HeightCm < 0 {
		return errors.Errorf("session: height_cm must not be negative, got %.1f", s.HeightCm)
	}
	if s.Variant != nil && s.Variant.Color != "" {
		if _, ok := effects.ParseColor(s.Variant.Color); !ok {
			return errors.Errorf("session: unknown variant color %q", s.Variant.Color)
		}
	}
	if _, err := effects.Resolve(s.Filters); err != nil {
		return errors.Wrap(err, "session: filters")
	}
	if err := c.Detector.Config.Validate(); err != nil {
		return errors.Wrap(err, "detector")
	}
	if _, err := c.ExportOptions(); err != nil {
		return errors.Wrap(err, "output")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log")
	}
	return nil
}

func (c Config) ExportOptions() (export.Options, error) {
	format, err := export.ParseFormat(c.Output.Format)
	if err != nil {
		return export.Options{}, err
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return export.Options{}, errors.Errorf("quality must be in [1,100], got %d", c.Output.Quality)
	}
	return export.Options{
		Format:   format,
		Quality:  c.Output.Quality,
		Lossless: c.Output.Lossless,
		ShareURL: c.Output.ShareURL,
		QRSize:   c.Output.QRSize,
	}, nil
}
