package effects

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

type fabricPass struct {
	base
	period float64
	depth  float32
}

type runwayPass struct {
	base
}

type seasonalPass struct {
	base
	season string
	gain   [3]float32
	sat    float32
}

var seasons = map[string]struct {
	gain [3]float32
	sat  float32
}{
	"spring": {[3]float32{1.04, 1.06, 1.0}, 1.1},
	"summer": {[3]float32{1.08, 1.03, 0.94}, 1.25},
	"autumn": {[3]float32{1.1, 0.97, 0.82}, 0.9},
	"winter": {[3]float32{0.95, 1.0, 1.1}, 0.75},
}

func newFashionPass(id string, k float32, p params) (Pass, error) {
	b := base{id: id, kind: Fashion, intensity: k}
	switch id {
	case "fabric":
		period, err := p.float("period", 6)
		if err != nil {
			return nil, err
		}
		if period < 2 {
			return nil, errors.Errorf("fabric: period must be >= 2, got %.1f", period)
		}
		depth, err := p.float("depth", 0.12)
		if err != nil {
			return nil, err
		}
		return &fabricPass{base: b, period: period, depth: float32(depth)}, nil
	case "runway":
		return &runwayPass{base: b}, nil
	case "seasonal":
		season, err := p.str("season", "autumn")
		if err != nil {
			return nil, err
		}
		s, ok := seasons[season]
		if !ok {
			return nil, errors.Errorf("seasonal: unknown season %q", season)
		}
		return &seasonalPass{base: b, season: season, gain: s.gain, sat: s.sat}, nil
	}
	return nil, errors.Errorf("unknown fashion filter: %s", id)
}

// Apply modulates brightness with a woven cross pattern.
func (p *fabricPass) Apply(dst *image.RGBA, _ *Canvas) error {
	f := 2 * math.Pi / p.period
	mapPositioned(dst, p.intensity, func(x, y int, r, g, b float32) (float32, float32, float32) {
		warp := sin32(float64(x) * f)
		weft := sin32(float64(y) * f)
		m := 1 + p.depth*warp*weft
		return r * m, g * m, b * m
	})
	return nil
}

// Apply lights an elliptical spot on the upper centre and darkens the rest,
// with a brighter floor strip at the bottom.
func (p *runwayPass) Apply(dst *image.RGBA, _ *Canvas) error {
	w, h := float32(dst.Rect.Dx()), float32(dst.Rect.Dy())
	mapPositioned(dst, p.intensity, func(x, y int, r, g, b float32) (float32, float32, float32) {
		dx := (float32(x) - w/2) / (w * 0.35)
		dy := (float32(y) - h*0.45) / (h * 0.6)
		d := dx*dx + dy*dy
		light := lerp(1.2, 0.45, easeInOutCubic(min(1, d)))
		if fy := float32(y) / h; fy > 0.85 {
			light += (fy - 0.85) * 1.5
		}
		return r * light, g * light, b * light
	})
	return nil
}

func (p *seasonalPass) Apply(dst *image.RGBA, _ *Canvas) error {
	mapPixels(dst, p.intensity, func(r, g, b float32) (float32, float32, float32) {
		r, g, b = r*p.gain[0], g*p.gain[1], b*p.gain[2]
		l := luma(r, g, b)
		return l + (r-l)*p.sat, l + (g-l)*p.sat, l + (b-l)*p.sat
	})
	return nil
}
