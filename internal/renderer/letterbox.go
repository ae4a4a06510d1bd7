package renderer

import (
	"image"
	"image/draw"
	"math"

	"github.com/nfnt/resize"
	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/tryon/internal/pose"
)

// Fit places a source frame inside the output while preserving its aspect
// ratio. Rect is where the scaled source lands; the rest is padding.
type Fit struct {
	Scale float64
	Rect  image.Rectangle
}

// ComputeFit centres a srcW x srcH frame inside dstW x dstH.
func ComputeFit(srcW, srcH, dstW, dstH int) Fit {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return Fit{}
	}
	scale := math.Min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
	w := int(math.Round(float64(srcW) * scale))
	h := int(math.Round(float64(srcH) * scale))
	x := (dstW - w) / 2
	y := (dstH - h) / 2
	return Fit{Scale: scale, Rect: image.Rect(x, y, x+w, y+h)}
}

// Point maps source frame coordinates into output coordinates.
func (f Fit) Point(x, y float32) (float32, float32) {
	return x*float32(f.Scale) + float32(f.Rect.Min.X), y*float32(f.Scale) + float32(f.Rect.Min.Y)
}

// Subject returns a copy of s with keypoints and box in output coordinates.
func (f Fit) Subject(s pose.Subject) pose.Subject {
	out := s.Clone()
	for i := range out.Keypoints {
		out.Keypoints[i].X, out.Keypoints[i].Y = f.Point(out.Keypoints[i].X, out.Keypoints[i].Y)
	}
	if out.Box != nil {
		out.Box.X, out.Box.Y = f.Point(out.Box.X, out.Box.Y)
		out.Box.W *= float32(f.Scale)
		out.Box.H *= float32(f.Scale)
	}
	return out
}

// Letterbox draws src into fit.Rect of dst.
func Letterbox(dst draw.Image, src image.Image, fit Fit) {
	sb := src.Bounds()
	if sb.Dx() == fit.Rect.Dx() && sb.Dy() == fit.Rect.Dy() {
		draw.Draw(dst, fit.Rect, src, sb.Min, draw.Src)
		return
	}
	xdraw.BiLinear.Scale(dst, fit.Rect, src, sb, xdraw.Src, nil)
}

// AlignMask maps a mask sized like the source frame into output space with
// the same fit as the frame. Padding is background.
func AlignMask(mask *image.Gray, fit Fit, w, h int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, w, h))
	Letterbox(out, mask, fit)
	return out
}

// Cover scales src to fill w x h, cropping the overflow around the centre.
func Cover(src image.Image, w, h int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	sb := src.Bounds()
	if sb.Empty() {
		return out
	}
	scale := math.Max(float64(w)/float64(sb.Dx()), float64(h)/float64(sb.Dy()))
	sw := uint(math.Ceil(float64(sb.Dx()) * scale))
	sh := uint(math.Ceil(float64(sb.Dy()) * scale))
	scaled := resize.Resize(sw, sh, src, resize.Bilinear)

	offset := image.Pt((int(sw)-w)/2, (int(sh)-h)/2).Add(scaled.Bounds().Min)
	draw.Draw(out, out.Bounds(), scaled, offset, draw.Src)
	return out
}
