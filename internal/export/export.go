// Package export serialises finished frames for capture and sharing. It is
// pull-based: callers encode a frame they already own, off the render loop.
package export

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"
)

// Format is an encoded image format.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	WebP Format = "webp"
)

// ParseFormat accepts format names and common file extensions.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "png", "":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "webp":
		return WebP, nil
	}
	return "", errors.Errorf("unsupported export format: %s", s)
}

// ContentType is the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case WebP:
		return "image/webp"
	}
	return "image/png"
}

// Options controls encoding. Quality applies to JPEG and lossy WebP.
type Options struct {
	Format   Format
	Quality  int
	Lossless bool
	// ShareURL, when set, is stamped as a QR code in the bottom-right corner.
	ShareURL string
	// QRSize is the code's edge in pixels; zero picks a fifth of the short side.
	QRSize int
}

func DefaultOptions() Options {
	return Options{Format: PNG, Quality: 90}
}

// Encode writes img to w. img is never modified.
func Encode(w io.Writer, img image.Image, opts Options) error {
	if img == nil {
		return errors.New("export: nil frame")
	}
	if opts.ShareURL != "" {
		stamped, err := StampQR(img, opts.ShareURL, opts.QRSize)
		if err != nil {
			return err
		}
		img = stamped
	}

	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = 90
	}

	var err error
	switch opts.Format {
	case PNG, "":
		err = png.Encode(w, img)
	case JPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case WebP:
		err = webp.Encode(w, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(quality)})
	default:
		return errors.Errorf("unsupported export format: %s", opts.Format)
	}
	return errors.Wrapf(err, "encode %s", opts.Format)
}

// Capture encodes img into a byte slice.
func Capture(img image.Image, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StampQR returns a copy of img with a QR code for url in the bottom-right
// corner.
func StampQR(img image.Image, url string, size int) (*image.RGBA, error) {
	b := img.Bounds()
	if size <= 0 {
		size = min(b.Dx(), b.Dy()) / 5
	}
	if size < 21 {
		return nil, errors.Errorf("export: frame too small for a share code (%dpx)", size)
	}
	q, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return nil, errors.Wrap(err, "build share code")
	}
	code := q.Image(size)

	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)

	margin := size / 10
	cb := code.Bounds()
	at := image.Pt(b.Dx()-cb.Dx()-margin, b.Dy()-cb.Dy()-margin)
	draw.Draw(out, cb.Sub(cb.Min).Add(at), code, cb.Min, draw.Src)
	return out, nil
}
