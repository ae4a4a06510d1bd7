package inference

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Options carries backend-specific settings for the registry.
type Options struct {
	Model   string   `yaml:"model"`
	Library string   `yaml:"library"`
	Command []string `yaml:"command"`
	Fixture string   `yaml:"fixture"`
	Mask    string   `yaml:"mask"`
}

// NewDetector creates a detector based on the specified backend
func NewDetector(backend string, opts Options, logger zerolog.Logger) (Detector, error) {
	switch backend {
	case "onnx", "":
		return NewONNXPoseDetector(opts.Model, opts.Library), nil
	case "worker":
		if len(opts.Command) == 0 {
			return nil, errors.New("worker detector needs a command")
		}
		return NewWorkerDetector(opts.Command, logger), nil
	case "fixture":
		if opts.Fixture == "" {
			return nil, errors.New("fixture detector needs a fixture path")
		}
		return NewFixtureDetector(opts.Fixture), nil
	default:
		return nil, errors.Errorf("unknown detector backend: %s", backend)
	}
}

// NewSegmenter creates a segmenter based on the specified backend
func NewSegmenter(backend string, opts Options) (Segmenter, error) {
	switch backend {
	case "onnx", "":
		return NewONNXSegmenter(opts.Model, opts.Library), nil
	case "maskfile":
		if opts.Mask == "" {
			return nil, errors.New("maskfile segmenter needs a mask path")
		}
		return NewMaskFileSegmenter(opts.Mask), nil
	default:
		return nil, errors.Errorf("unknown segmenter backend: %s", backend)
	}
}
