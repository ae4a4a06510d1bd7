package effects

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
)

type particleKind int

const (
	rain particleKind = iota
	snow
	sparkles
	floating
)

// particlePass draws animated particles whose positions are a pure function
// of seed, index and canvas time.
type particlePass struct {
	base
	kind  particleKind
	count int
	seed  int64
	speed float32
	tint  color.RGBA
}

func newEnvironmentalPass(id string, k float32, p params) (Pass, error) {
	pp := &particlePass{base: base{id: id, kind: Environmental, intensity: k}}
	var (
		defCount int
		defSpeed float64
		defTint  color.RGBA
	)
	switch id {
	case "rain":
		pp.kind, defCount, defSpeed, defTint = rain, 220, 600, color.RGBA{200, 210, 230, 255}
	case "snow":
		pp.kind, defCount, defSpeed, defTint = snow, 160, 60, color.RGBA{255, 255, 255, 255}
	case "sparkles":
		pp.kind, defCount, defSpeed, defTint = sparkles, 60, 3, color.RGBA{255, 240, 200, 255}
	case "particles":
		pp.kind, defCount, defSpeed, defTint = floating, 90, 40, color.RGBA{255, 250, 235, 255}
	default:
		return nil, errors.Errorf("unknown environmental filter: %s", id)
	}

	count, err := p.int("count", defCount)
	if err != nil {
		return nil, err
	}
	seed, err := p.int("seed", 7)
	if err != nil {
		return nil, err
	}
	speed, err := p.float("speed", defSpeed)
	if err != nil {
		return nil, err
	}
	tint, err := p.color("color", defTint)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, errors.Errorf("%s: count must be >= 0", id)
	}
	pp.count, pp.seed, pp.speed, pp.tint = count, int64(seed), float32(speed), tint
	return pp, nil
}

func (p *particlePass) Apply(dst *image.RGBA, c *Canvas) error {
	w, h := float32(dst.Rect.Dx()), float32(dst.Rect.Dy())
	t := float32(c.Time)
	ox, oy := dst.Rect.Min.X, dst.Rect.Min.Y

	for i := 0; i < p.count; i++ {
		hx, hy, hs := hash(p.seed, i, 0), hash(p.seed, i, 1), hash(p.seed, i, 2)
		switch p.kind {
		case rain:
			length := float32(10 + hs*10)
			speed := p.speed * (0.7 + hs*0.6)
			x := hx * w
			y := wrap(hy*(h+length)+t*speed, h+length) - length
			for s := float32(0); s < length; s++ {
				// slight slant to the right
				blendAt(dst, ox+int(x+s*0.15), oy+int(y+s), p.tint, 0.35*p.intensity)
			}
		case snow:
			radius := 1 + int(hs*2.5)
			x := hx*w + 8*sin32(float64(t)*(0.8+float64(hs))+float64(i))
			y := wrap(hy*h+t*p.speed*(0.5+hs), h)
			disc(dst, ox+int(x), oy+int(y), radius, p.tint, 0.8*p.intensity)
		case sparkles:
			phase := hs * 2 * math.Pi
			tw := 0.5 + 0.5*sin32(float64(t*p.speed+phase))
			a := easeInOutCubic(tw) * p.intensity
			x, y := ox+int(hx*w), oy+int(hy*h)
			arm := 2 + int(hs*3)
			blendAt(dst, x, y, p.tint, a)
			for d := 1; d <= arm; d++ {
				fade := a * (1 - float32(d)/float32(arm+1))
				blendAt(dst, x+d, y, p.tint, fade)
				blendAt(dst, x-d, y, p.tint, fade)
				blendAt(dst, x, y+d, p.tint, fade)
				blendAt(dst, x, y-d, p.tint, fade)
			}
		case floating:
			life := wrap(hy+t*p.speed/h*(0.5+hs), 1)
			x := hx*w + 12*sin32(float64(t)*0.6+float64(i))
			y := h - life*h
			// fade in at the bottom, out at the top
			a := lerp(0, 0.7, easeInOutCubic(1-absf(2*life-1))) * p.intensity
			disc(dst, ox+int(x), oy+int(y), 1+int(hs*2), p.tint, a)
		}
	}
	return nil
}

func disc(dst *image.RGBA, cx, cy, r int, c color.RGBA, a float32) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				blendAt(dst, cx+dx, cy+dy, c, a)
			}
		}
	}
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
