package effects

import (
	"image"

	"github.com/pkg/errors"
)

type lightingPass struct {
	base
	gain     [3]float32
	lift     float32
	contrast float32
	vignette float32
	neon     bool
}

func newLightingPass(id string, k float32) (Pass, error) {
	p := &lightingPass{
		base:     base{id: id, kind: Lighting, intensity: k},
		gain:     [3]float32{1, 1, 1},
		contrast: 1,
	}
	switch id {
	case "studio":
		p.gain = [3]float32{1.06, 1.06, 1.06}
		p.lift = 6
		p.vignette = 0.15
	case "warm":
		p.gain = [3]float32{1.12, 1.0, 0.84}
	case "cool":
		p.gain = [3]float32{0.88, 0.98, 1.14}
	case "dramatic":
		p.contrast = 1.35
		p.vignette = 0.55
	case "neon":
		p.contrast = 1.1
		p.neon = true
	default:
		return nil, errors.Errorf("unknown lighting preset: %s", id)
	}
	return p, nil
}

// Apply multiplies by the preset gain, adjusts contrast, darkens the edges
// and, for neon, adds a magenta to cyan wash across the frame.
func (p *lightingPass) Apply(dst *image.RGBA, _ *Canvas) error {
	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	mapPositioned(dst, p.intensity, func(x, y int, r, g, b float32) (float32, float32, float32) {
		r = contrast(r*p.gain[0]+p.lift, p.contrast)
		g = contrast(g*p.gain[1]+p.lift, p.contrast)
		b = contrast(b*p.gain[2]+p.lift, p.contrast)
		if p.vignette > 0 {
			v := vignette(x, y, w, h, p.vignette)
			r, g, b = r*v, g*v, b*v
		}
		if p.neon {
			t := float32(x) / float32(max(1, w-1))
			r += lerp(70, 0, t)
			g += lerp(0, 60, t)
			b += lerp(60, 70, t)
		}
		return r, g, b
	})
	return nil
}
