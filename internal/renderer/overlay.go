package renderer

import (
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ivlev/tryon/internal/asset"
	"github.com/ivlev/tryon/internal/placement"
)

// Adjustments are user controls applied to the overlay before drawing.
// Brightness and Contrast are multipliers around 1.
type Adjustments struct {
	Alpha      float32 `yaml:"alpha"`
	Brightness float32 `yaml:"brightness"`
	Contrast   float32 `yaml:"contrast"`
	// Tint is how strongly the variant colour replaces the asset hue.
	Tint float32 `yaml:"tint"`
}

func DefaultAdjustments() Adjustments {
	return Adjustments{Alpha: 1, Brightness: 1, Contrast: 1, Tint: 0.6}
}

// Transform positions the overlay: X and Y are percent of the output frame,
// Scale is percent of the nominal overlay width, Rotation is degrees.
type Transform struct {
	X, Y     float32
	Scale    float32
	Rotation float32
	Adjustments
}

// TransformFor builds a transform from a placement recommendation.
func TransformFor(rec placement.Recommendation, adj Adjustments) Transform {
	t := Transform{X: rec.X, Y: rec.Y, Scale: rec.Scale, Adjustments: adj}
	if rec.HasRotation {
		t.Rotation = rec.Rotation
	}
	return t
}

// Overlay is the asset drawn in the final stage. Tint is nil when the asset
// keeps its own colours.
type Overlay struct {
	Image     *asset.Future
	Transform Transform
	Tint      *color.RGBA
}

// drawOverlay scales, adjusts, tints and finally rotates the asset about its
// centre onto dst. dst is untouched when an error is returned.
func drawOverlay(dst *image.RGBA, img image.Image, t Transform, tint *color.RGBA) error {
	ob := img.Bounds()
	if ob.Empty() {
		return errors.New("overlay image is empty")
	}
	frameW, frameH := float64(dst.Rect.Dx()), float64(dst.Rect.Dy())
	targetW := frameW * float64(placement.NominalWidth) * float64(t.Scale) / 100
	targetH := targetW * float64(ob.Dy()) / float64(ob.Dx())
	if targetW < 1 || targetH < 1 {
		return errors.Errorf("overlay too small: %.1fx%.1f", targetW, targetH)
	}

	scaled := resize.Resize(uint(math.Round(targetW)), uint(math.Round(targetH)), img, resize.Lanczos3)
	src := adjust(scaled, t.Adjustments, tint)

	sw, sh := float64(src.Rect.Dx()), float64(src.Rect.Dy())
	cx := float64(t.X) / 100 * frameW
	cy := float64(t.Y) / 100 * frameH
	rad := float64(t.Rotation) * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)

	// source centre onto (cx, cy), rotated about it
	s2d := f64.Aff3{
		cos, -sin, cx - (cos*sw/2 - sin*sh/2),
		sin, cos, cy - (sin*sw/2 + cos*sh/2),
	}
	xdraw.BiLinear.Transform(dst, s2d, src, src.Bounds(), xdraw.Over, nil)
	return nil
}

// adjust returns a non-premultiplied copy with alpha, brightness, contrast
// and tint applied, in that order.
func adjust(img image.Image, a Adjustments, tint *color.RGBA) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(out, out.Bounds(), img, b.Min, xdraw.Src)

	alpha := clampUnit(a.Alpha)
	for i := 0; i+3 < len(out.Pix); i += 4 {
		r, g, bl := float32(out.Pix[i]), float32(out.Pix[i+1]), float32(out.Pix[i+2])
		r, g, bl = r*a.Brightness, g*a.Brightness, bl*a.Brightness
		r = (r-128)*a.Contrast + 128
		g = (g-128)*a.Contrast + 128
		bl = (bl-128)*a.Contrast + 128
		if tint != nil && a.Tint > 0 {
			l := (0.299*r + 0.587*g + 0.114*bl) / 255
			k := clampUnit(a.Tint)
			r += (float32(tint.R)*l - r) * k
			g += (float32(tint.G)*l - g) * k
			bl += (float32(tint.B)*l - bl) * k
		}
		out.Pix[i] = to8(r)
		out.Pix[i+1] = to8(g)
		out.Pix[i+2] = to8(bl)
		out.Pix[i+3] = to8(float32(out.Pix[i+3]) * alpha)
	}
	return out
}

func clampUnit(v float32) float32 {
	return float32(math.Max(0, math.Min(1, float64(v))))
}

func to8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
