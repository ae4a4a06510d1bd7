package effects

import (
	"image"
	"math"
)

type colorPass struct {
	base
	fn rgbFunc
}

func (p *colorPass) Apply(dst *image.RGBA, _ *Canvas) error {
	mapPixels(dst, p.intensity, p.fn)
	return nil
}

func newColorPass(id string, k float32, p params) (Pass, error) {
	cp := &colorPass{base: base{id: id, kind: Color, intensity: k}}
	switch id {
	case "sepia":
		cp.fn = sepia
	case "grayscale":
		cp.fn = func(r, g, b float32) (float32, float32, float32) {
			l := luma(r, g, b)
			return l, l, l
		}
	case "saturate":
		amount, err := p.float("amount", 1.6)
		if err != nil {
			return nil, err
		}
		a := float32(amount)
		cp.fn = func(r, g, b float32) (float32, float32, float32) {
			l := luma(r, g, b)
			return l + (r-l)*a, l + (g-l)*a, l + (b-l)*a
		}
	case "hue-rotate":
		deg, err := p.float("degrees", 90)
		if err != nil {
			return nil, err
		}
		cp.fn = hueRotate(deg)
	case "vintage":
		cp.fn = func(r, g, b float32) (float32, float32, float32) {
			sr, sg, sb := sepia(r, g, b)
			// faded blacks and muted contrast
			return contrast(lerp(r, sr, 0.6), 0.85) + 12,
				contrast(lerp(g, sg, 0.6), 0.85) + 6,
				contrast(lerp(b, sb, 0.6), 0.85)
		}
	}
	return cp, nil
}

func sepia(r, g, b float32) (float32, float32, float32) {
	return 0.393*r + 0.769*g + 0.189*b,
		0.349*r + 0.686*g + 0.168*b,
		0.272*r + 0.534*g + 0.131*b
}

// hueRotate builds the luminance-preserving hue rotation matrix.
func hueRotate(deg float64) rgbFunc {
	rad := deg * math.Pi / 180
	c, s := float32(math.Cos(rad)), float32(math.Sin(rad))
	m := [9]float32{
		0.213 + c*0.787 - s*0.213, 0.715 - c*0.715 - s*0.715, 0.072 - c*0.072 + s*0.928,
		0.213 - c*0.213 + s*0.143, 0.715 + c*0.285 + s*0.140, 0.072 - c*0.072 - s*0.283,
		0.213 - c*0.213 - s*0.787, 0.715 - c*0.715 + s*0.715, 0.072 + c*0.928 + s*0.072,
	}
	return func(r, g, b float32) (float32, float32, float32) {
		return m[0]*r + m[1]*g + m[2]*b,
			m[3]*r + m[4]*g + m[5]*b,
			m[6]*r + m[7]*g + m[8]*b
	}
}
