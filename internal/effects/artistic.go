package effects

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

type sketchPass struct {
	base
	threshold float64
}

type posterizePass struct {
	base
	levels int
}

type pixelatePass struct {
	base
	block int
}

type glitchPass struct {
	base
	seed  int64
	bands int
	shift int
}

func newArtisticPass(id string, k float32, p params) (Pass, error) {
	b := base{id: id, kind: Artistic, intensity: k}
	switch id {
	case "sketch":
		th, err := p.float("threshold", 30)
		if err != nil {
			return nil, err
		}
		return &sketchPass{base: b, threshold: th}, nil
	case "painting":
		levels, err := p.int("levels", 6)
		if err != nil {
			return nil, err
		}
		if levels < 2 {
			return nil, errors.Errorf("painting: levels must be >= 2, got %d", levels)
		}
		return &posterizePass{base: b, levels: levels}, nil
	case "pixelate":
		block, err := p.int("block", 8)
		if err != nil {
			return nil, err
		}
		if block < 1 {
			return nil, errors.Errorf("pixelate: block must be >= 1, got %d", block)
		}
		return &pixelatePass{base: b, block: block}, nil
	case "glitch":
		seed, err := p.int("seed", 1)
		if err != nil {
			return nil, err
		}
		bands, err := p.int("bands", 12)
		if err != nil {
			return nil, err
		}
		shift, err := p.int("shift", 12)
		if err != nil {
			return nil, err
		}
		if bands < 1 {
			return nil, errors.Errorf("glitch: bands must be >= 1, got %d", bands)
		}
		return &glitchPass{base: b, seed: int64(seed), bands: bands, shift: shift}, nil
	}
	return nil, errors.Errorf("unknown artistic filter: %s", id)
}

// Apply draws dark strokes where the Sobel gradient exceeds the threshold on
// a white sheet.
func (p *sketchPass) Apply(dst *image.RGBA, c *Canvas) error {
	src := c.snapshot(0, dst)
	w, h := dst.Rect.Dx(), dst.Rect.Dy()

	gray := func(x, y int) float64 {
		x = max(0, min(w-1, x))
		y = max(0, min(h-1, y))
		i := y*src.Stride + x*4
		return float64(luma(float32(src.Pix[i]), float32(src.Pix[i+1]), float32(src.Pix[i+2])))
	}

	// Sobel kernels
	gx := [3][3]float64{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	gy := [3][3]float64{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}

	mapPositioned(dst, p.intensity, func(x, y int, _, _, _ float32) (float32, float32, float32) {
		var sumX, sumY float64
		for ky := -1; ky <= 1; ky++ {
			for kx := -1; kx <= 1; kx++ {
				v := gray(x+kx, y+ky)
				sumX += v * gx[ky+1][kx+1]
				sumY += v * gy[ky+1][kx+1]
			}
		}
		magnitude := math.Sqrt(sumX*sumX + sumY*sumY)
		if magnitude <= p.threshold {
			return 255, 255, 255
		}
		v := float32(255 - math.Min(255, magnitude))
		return v, v, v
	})
	return nil
}

func (p *posterizePass) Apply(dst *image.RGBA, _ *Canvas) error {
	step := 255 / float32(p.levels-1)
	q := func(v float32) float32 {
		return float32(int(v/step+0.5)) * step
	}
	mapPixels(dst, p.intensity, func(r, g, b float32) (float32, float32, float32) {
		return q(r), q(g), q(b)
	})
	return nil
}

// Apply replaces every block with the colour of its top-left sample.
func (p *pixelatePass) Apply(dst *image.RGBA, c *Canvas) error {
	if p.block == 1 {
		return nil
	}
	src := c.snapshot(0, dst)
	mapPositioned(dst, p.intensity, func(x, y int, _, _, _ float32) (float32, float32, float32) {
		i := (y/p.block*p.block)*src.Stride + (x/p.block*p.block)*4
		return float32(src.Pix[i]), float32(src.Pix[i+1]), float32(src.Pix[i+2])
	})
	return nil
}

// Apply shifts red and blue channels in opposite directions inside
// horizontal bands whose offsets come from the seed.
func (p *glitchPass) Apply(dst *image.RGBA, c *Canvas) error {
	src := c.snapshot(0, dst)
	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	bandH := max(1, h/p.bands)

	mapPositioned(dst, p.intensity, func(x, y int, r, g, b float32) (float32, float32, float32) {
		band := y / bandH
		if hash(p.seed, band, 0) < 0.5 {
			return r, g, b
		}
		off := int(hash(p.seed, band, 1)*float32(p.shift*2)) - p.shift
		rx := max(0, min(w-1, x+off))
		bx := max(0, min(w-1, x-off))
		row := y * src.Stride
		return float32(src.Pix[row+rx*4]), g, float32(src.Pix[row+bx*4+2])
	})
	return nil
}
