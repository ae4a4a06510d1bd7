package export

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"testing"

	_ "github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	return img
}

func TestEncodeFormats(t *testing.T) {
	for _, f := range []Format{PNG, JPEG, WebP} {
		t.Run(string(f), func(t *testing.T) {
			data, err := Capture(frame(), Options{Format: f, Quality: 80})
			require.NoError(t, err)

			img, name, err := image.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, string(f), name)
			assert.Equal(t, 320, img.Bounds().Dx())
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(".JPG")
	require.NoError(t, err)
	assert.Equal(t, JPEG, f)
	assert.Equal(t, "image/webp", WebP.ContentType())

	_, err = ParseFormat("gif")
	assert.Error(t, err)
}

func TestStampQRLeavesSourceAlone(t *testing.T) {
	src := frame()
	before := append([]byte(nil), src.Pix...)

	out, err := StampQR(src, "https://example.com/look/42", 64)
	require.NoError(t, err)
	assert.Equal(t, before, src.Pix)

	// the code has dark modules in its corner finder pattern region
	dark := 0
	for y := 240 - 64 - 6; y < 240-6; y++ {
		for x := 320 - 64 - 6; x < 320-6; x++ {
			if out.RGBAAt(x, y) == (color.RGBA{A: 255}) {
				dark++
			}
		}
	}
	assert.Greater(t, dark, 100)
	assert.Equal(t, src.RGBAAt(10, 10), out.RGBAAt(10, 10))
}

func TestStampQRRejectsTinyFrames(t *testing.T) {
	_, err := StampQR(image.NewRGBA(image.Rect(0, 0, 40, 40)), "x", 0)
	assert.Error(t, err)
}
