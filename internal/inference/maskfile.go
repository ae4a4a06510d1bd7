package inference

import (
	"context"
	"image"
	"os"

	"github.com/pkg/errors"

	"github.com/ivlev/tryon/internal/asset"
	"github.com/ivlev/tryon/internal/segment"
)

// MaskFileSegmenter serves one precomputed mask, resized to each frame.
type MaskFileSegmenter struct {
	Path string

	lc   lifecycle
	mask *image.Gray
}

func NewMaskFileSegmenter(path string) *MaskFileSegmenter {
	return &MaskFileSegmenter{Path: path}
}

// NewStaticSegmenter serves mask without reading a file.
func NewStaticSegmenter(mask *image.Gray) *MaskFileSegmenter {
	return &MaskFileSegmenter{mask: mask}
}

func (s *MaskFileSegmenter) Init(cfg Config) error {
	return s.lc.init(cfg, s.teardown, s.setup)
}

func (s *MaskFileSegmenter) setup() error {
	if s.Path == "" {
		if s.mask == nil {
			return errors.New("mask path is empty")
		}
		return nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return errors.Wrap(err, "read mask")
	}
	img, err := asset.Decode(data)
	if err != nil {
		return errors.Wrapf(err, "decode mask %s", s.Path)
	}
	// editors and lossy formats leave soft or noisy edges
	mask := segment.Threshold(segment.FromImage(img), 128)
	if segment.Coverage(mask) == 0 {
		return errors.Errorf("mask %s has no subject pixels", s.Path)
	}
	if err := checkCoverage(mask); err != nil {
		return errors.Wrapf(err, "mask %s", s.Path)
	}
	s.mask = mask
	return nil
}

// maxMaskCoverage is the largest subject share accepted from a segmenter;
// above it the mask cannot separate subject from background.
const maxMaskCoverage = 0.98

func checkCoverage(m *image.Gray) error {
	if c := segment.Coverage(m); c > maxMaskCoverage {
		return errors.Errorf("mask covers %.0f%% of the frame", c*100)
	}
	return nil
}

func (s *MaskFileSegmenter) teardown() error { return nil }

func (s *MaskFileSegmenter) Segment(ctx context.Context, frame image.Image) (*image.Gray, error) {
	_, release, err := s.lc.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Bounds().Empty() {
		return nil, Unavailable("segmentation", errors.New("empty frame"))
	}
	b := frame.Bounds()
	out := segment.Resize(s.mask, b.Dx(), b.Dy())
	if out == s.mask {
		out = &image.Gray{Pix: append([]uint8(nil), out.Pix...), Stride: out.Stride, Rect: out.Rect}
	}
	return out, nil
}

func (s *MaskFileSegmenter) Dispose() error {
	return s.lc.dispose(s.teardown)
}
