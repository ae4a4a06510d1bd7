package effects

import (
	"image"

	"github.com/ivlev/tryon/internal/segment"
)

type backgroundPass struct {
	base
	replace bool
	radius  int
	feather int
}

func newBackgroundPass(id string, k float32, p params) (Pass, error) {
	radius, err := p.int("radius", 12)
	if err != nil {
		return nil, err
	}
	feather, err := p.int("feather", 2)
	if err != nil {
		return nil, err
	}
	return &backgroundPass{
		base:    base{id: id, kind: Background, intensity: k},
		replace: id == "replace",
		radius:  max(1, radius),
		feather: max(0, feather),
	}, nil
}

// Apply keeps subject pixels and swaps background pixels for a blurred copy
// of the frame or for the supplied background. Soft mask values blend.
func (p *backgroundPass) Apply(dst *image.RGBA, c *Canvas) error {
	if c.Mask == nil {
		return ErrNoMask
	}
	if c.Mask.Rect.Dx() != dst.Rect.Dx() || c.Mask.Rect.Dy() != dst.Rect.Dy() {
		return ErrNoMask
	}

	var bg *image.RGBA
	if p.replace {
		if c.Background == nil || c.Background.Rect != dst.Rect {
			return ErrNoBackground
		}
		bg = c.Background
	} else {
		src := c.snapshot(0, dst)
		tmp := c.Scratch(1, dst.Rect)
		boxBlur(src, src, tmp, p.radius)
		bg = src
	}

	mask := segment.Feather(c.Mask, p.feather)
	for i, m := range mask.Pix {
		a := (1 - float32(m)/255) * p.intensity
		if a <= 0 {
			continue
		}
		o := i * 4
		for ch := 0; ch < 3; ch++ {
			v := float32(dst.Pix[o+ch])
			dst.Pix[o+ch] = clamp8(v + (float32(bg.Pix[o+ch])-v)*a)
		}
	}
	return nil
}
