package effects

import (
	"image"
	"image/color"
	"math"
)

// rgbFunc maps one pixel in 0-255 float space.
type rgbFunc func(r, g, b float32) (float32, float32, float32)

// mapPixels applies fn to every pixel and mixes the result back by k.
// Alpha is left untouched.
func mapPixels(dst *image.RGBA, k float32, fn rgbFunc) {
	if k <= 0 {
		return
	}
	for i := 0; i+3 < len(dst.Pix); i += 4 {
		r, g, b := float32(dst.Pix[i]), float32(dst.Pix[i+1]), float32(dst.Pix[i+2])
		nr, ng, nb := fn(r, g, b)
		dst.Pix[i] = clamp8(r + (nr-r)*k)
		dst.Pix[i+1] = clamp8(g + (ng-g)*k)
		dst.Pix[i+2] = clamp8(b + (nb-b)*k)
	}
}

// mapPositioned is mapPixels with the pixel coordinate and frame size.
func mapPositioned(dst *image.RGBA, k float32, fn func(x, y int, r, g, b float32) (float32, float32, float32)) {
	if k <= 0 {
		return
	}
	b := dst.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := dst.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			i := row + (x-b.Min.X)*4
			r, g, bl := float32(dst.Pix[i]), float32(dst.Pix[i+1]), float32(dst.Pix[i+2])
			nr, ng, nb := fn(x-b.Min.X, y-b.Min.Y, r, g, bl)
			dst.Pix[i] = clamp8(r + (nr-r)*k)
			dst.Pix[i+1] = clamp8(g + (ng-g)*k)
			dst.Pix[i+2] = clamp8(bl + (nb-bl)*k)
		}
	}
}

// blendAt mixes c over the pixel at x,y with opacity a in [0,1].
func blendAt(dst *image.RGBA, x, y int, c color.RGBA, a float32) {
	if !(image.Point{X: x, Y: y}.In(dst.Rect)) || a <= 0 {
		return
	}
	if a > 1 {
		a = 1
	}
	i := dst.PixOffset(x, y)
	dst.Pix[i] = clamp8(float32(dst.Pix[i]) + (float32(c.R)-float32(dst.Pix[i]))*a)
	dst.Pix[i+1] = clamp8(float32(dst.Pix[i+1]) + (float32(c.G)-float32(dst.Pix[i+1]))*a)
	dst.Pix[i+2] = clamp8(float32(dst.Pix[i+2]) + (float32(c.B)-float32(dst.Pix[i+2]))*a)
}

func luma(r, g, b float32) float32 {
	return 0.299*r + 0.587*g + 0.114*b
}

func clamp8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func contrast(v, amount float32) float32 {
	return (v-128)*amount + 128
}

// vignette returns 1 at the frame centre falling to 1-strength in the corners.
func vignette(x, y, w, h int, strength float32) float32 {
	dx := (float32(x) + 0.5 - float32(w)/2) / (float32(w) / 2)
	dy := (float32(y) + 0.5 - float32(h)/2) / (float32(h) / 2)
	d := (dx*dx + dy*dy) / 2
	return 1 - strength*d
}

// hash returns a deterministic value in [0,1) for particle i and channel ch.
func hash(seed int64, i, ch int) float32 {
	z := uint64(seed) + uint64(i)*0x9E3779B97F4A7C15 + uint64(ch)*0xBF58476D1CE4E5B9
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z ^= z >> 31
	return float32(z>>40) / float32(1<<24)
}

// boxBlur blurs src into dst using tmp as the intermediate row buffer.
// All three share bounds.
func boxBlur(dst, src, tmp *image.RGBA, radius int) {
	if radius < 1 {
		copy(dst.Pix, src.Pix)
		return
	}
	w, h := src.Rect.Dx(), src.Rect.Dy()
	window := float32(radius*2 + 1)

	pass := func(out, in *image.RGBA, horizontal bool) {
		n, lines := w, h
		if !horizontal {
			n, lines = h, w
		}
		for line := 0; line < lines; line++ {
			at := func(p int) int {
				p = max(0, min(n-1, p))
				if horizontal {
					return line*in.Stride + p*4
				}
				return p*in.Stride + line*4
			}
			var sr, sg, sb float32
			for k := -radius; k <= radius; k++ {
				i := at(k)
				sr += float32(in.Pix[i])
				sg += float32(in.Pix[i+1])
				sb += float32(in.Pix[i+2])
			}
			for p := 0; p < n; p++ {
				o := at(p)
				out.Pix[o] = clamp8(sr / window)
				out.Pix[o+1] = clamp8(sg / window)
				out.Pix[o+2] = clamp8(sb / window)
				out.Pix[o+3] = in.Pix[o+3]

				add, drop := at(p+radius+1), at(p-radius)
				sr += float32(in.Pix[add]) - float32(in.Pix[drop])
				sg += float32(in.Pix[add+1]) - float32(in.Pix[drop+1])
				sb += float32(in.Pix[add+2]) - float32(in.Pix[drop+2])
			}
		}
	}
	pass(tmp, src, true)
	pass(dst, tmp, false)
}

func sin32(v float64) float32 { return float32(math.Sin(v)) }
