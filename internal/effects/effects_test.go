package effects

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: uint8((x + y) % 256), A: 255})
		}
	}
	return img
}

func clone(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Rect)
	copy(out.Pix, img.Pix)
	return out
}

func TestResolveRejectsBadSpecs(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
	}{
		{"unknown id", Spec{ID: "emboss", Intensity: 0.5}},
		{"intensity above one", Spec{ID: "sepia", Intensity: 1.5}},
		{"negative intensity", Spec{ID: "sepia", Intensity: -0.1}},
		{"type mismatch", Spec{ID: "blur", Pass: Color, Intensity: 0.5}},
		{"wrong param type", Spec{ID: "pixelate", Intensity: 1, Params: map[string]any{"block": "big"}}},
		{"bad season", Spec{ID: "seasonal", Intensity: 1, Params: map[string]any{"season": "monsoon"}}},
		{"bad color", Spec{ID: "snow", Intensity: 1, Params: map[string]any{"color": "#12"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve([]Spec{tt.spec})
			assert.Error(t, err)
		})
	}
}

func TestResolveEveryKnownFilter(t *testing.T) {
	var specs []Spec
	for _, id := range Names() {
		specs = append(specs, Spec{ID: id, Intensity: 0.7})
	}
	stack, err := Resolve(specs)
	require.NoError(t, err)
	assert.Len(t, stack, 23)
	assert.True(t, stack.NeedsMask())
	assert.Len(t, stack.Of(Background), 2)
	assert.Equal(t, Names(), stack.IDs())
}

func TestPassesAreDeterministic(t *testing.T) {
	src := gradient(64, 48)
	mask := image.NewGray(src.Rect)
	for y := 10; y < 40; y++ {
		for x := 20; x < 44; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	for _, id := range Names() {
		if id == "replace" {
			continue
		}
		t.Run(id, func(t *testing.T) {
			p, err := NewPass(Spec{ID: id, Intensity: 0.8})
			require.NoError(t, err)

			a, b := clone(src), clone(src)
			require.NoError(t, p.Apply(a, &Canvas{Mask: mask, Time: 1.25}))
			require.NoError(t, p.Apply(b, &Canvas{Mask: mask, Time: 1.25}))
			assert.True(t, bytes.Equal(a.Pix, b.Pix))
			assert.False(t, bytes.Equal(a.Pix, src.Pix), "pass had no visible effect")
		})
	}
}

func TestZeroIntensityIsIdentity(t *testing.T) {
	src := gradient(32, 32)
	for _, id := range []string{"sepia", "sketch", "dramatic", "rain", "runway"} {
		p, err := NewPass(Spec{ID: id, Intensity: 0})
		require.NoError(t, err)
		dst := clone(src)
		require.NoError(t, p.Apply(dst, &Canvas{}))
		assert.Equal(t, src.Pix, dst.Pix, id)
	}
}

func TestGrayscale(t *testing.T) {
	p, err := NewPass(Spec{ID: "grayscale", Intensity: 1})
	require.NoError(t, err)
	dst := gradient(16, 16)
	require.NoError(t, p.Apply(dst, &Canvas{}))
	for i := 0; i < len(dst.Pix); i += 4 {
		assert.Equal(t, dst.Pix[i], dst.Pix[i+1])
		assert.Equal(t, dst.Pix[i+1], dst.Pix[i+2])
	}
}

func TestBackgroundPass(t *testing.T) {
	blur, err := NewPass(Spec{ID: "blur", Intensity: 1, Params: map[string]any{"feather": 0}})
	require.NoError(t, err)

	t.Run("missing mask", func(t *testing.T) {
		assert.ErrorIs(t, blur.Apply(gradient(8, 8), &Canvas{}), ErrNoMask)
	})

	t.Run("replace keeps subject pixels", func(t *testing.T) {
		p, err := NewPass(Spec{ID: "replace", Intensity: 1, Params: map[string]any{"feather": 0}})
		require.NoError(t, err)

		dst := gradient(20, 20)
		orig := clone(dst)
		mask := image.NewGray(dst.Rect)
		mask.SetGray(5, 5, color.Gray{Y: 255})

		bg := image.NewRGBA(dst.Rect)
		for i := range bg.Pix {
			bg.Pix[i] = 9
		}

		require.NoError(t, p.Apply(dst, &Canvas{Mask: mask, Background: bg}))
		assert.Equal(t, orig.RGBAAt(5, 5), dst.RGBAAt(5, 5))
		assert.Equal(t, color.RGBA{9, 9, 9, 255}, dst.RGBAAt(0, 0))

		assert.ErrorIs(t, p.Apply(gradient(20, 20), &Canvas{Mask: mask}), ErrNoBackground)
	})
}

func TestEnvironmentalDependsOnTime(t *testing.T) {
	p, err := NewPass(Spec{ID: "snow", Intensity: 1})
	require.NoError(t, err)

	a, b := gradient(80, 60), gradient(80, 60)
	require.NoError(t, p.Apply(a, &Canvas{Time: 0}))
	require.NoError(t, p.Apply(b, &Canvas{Time: 2}))
	assert.False(t, bytes.Equal(a.Pix, b.Pix))
}

func TestParseColor(t *testing.T) {
	c, ok := ParseColor("#ff8000")
	require.True(t, ok)
	assert.Equal(t, color.RGBA{255, 128, 0, 255}, c)

	c, ok = ParseColor("#0f0")
	require.True(t, ok)
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, c)

	_, ok = ParseColor("Navy")
	assert.True(t, ok)
	_, ok = ParseColor("octarine")
	assert.False(t, ok)
}

func TestEasing(t *testing.T) {
	assert.Equal(t, float32(0), easeInOutCubic(0))
	assert.Equal(t, float32(1), easeInOutCubic(1))
	assert.InDelta(t, 0.5, easeInOutCubic(0.5), 1e-6)
	assert.InDelta(t, 1.5, wrap(-0.5, 2), 1e-6)
}
