package renderer

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/tryon/internal/asset"
	"github.com/ivlev/tryon/internal/effects"
	"github.com/ivlev/tryon/internal/pose"
)

func testFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	return img
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func stack(t *testing.T, specs ...effects.Spec) effects.Stack {
	s, err := effects.Resolve(specs)
	require.NoError(t, err)
	return s
}

func newPipeline() *Pipeline {
	return New(160, 120, zerolog.Nop())
}

func TestComputeFit(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		dstW, dstH int
		want       image.Rectangle
	}{
		{"same size", 640, 480, 640, 480, image.Rect(0, 0, 640, 480)},
		{"portrait into landscape", 480, 640, 640, 480, image.Rect(140, 0, 500, 480)},
		{"wide into 4:3", 1920, 1080, 640, 480, image.Rect(0, 60, 640, 420)},
		{"upscale", 320, 240, 640, 480, image.Rect(0, 0, 640, 480)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fit := ComputeFit(tt.srcW, tt.srcH, tt.dstW, tt.dstH)
			assert.Equal(t, tt.want, fit.Rect)
		})
	}
	assert.Equal(t, Fit{}, ComputeFit(0, 10, 10, 10))
}

func TestFitMapsSubject(t *testing.T) {
	fit := ComputeFit(480, 640, 640, 480)
	s := pose.Subject{
		Keypoints: []pose.Keypoint{{Name: pose.Nose, X: 240, Y: 320, Confidence: 0.9}},
		Box:       &pose.Rect{X: 0, Y: 0, W: 480, H: 640},
	}
	out := fit.Subject(s)

	assert.InDelta(t, 320, out.Keypoints[0].X, 1e-3)
	assert.InDelta(t, 240, out.Keypoints[0].Y, 1e-3)
	assert.InDelta(t, 140, out.Box.X, 1e-3)
	assert.InDelta(t, 360, out.Box.W, 1e-3)
	assert.Equal(t, float32(240), s.Keypoints[0].X, "input is not modified")
}

func TestRenderLetterboxesAndKeepsBase(t *testing.T) {
	base := testFrame(60, 120)
	before := Checksum(base)

	out, rep, err := newPipeline().Render(context.Background(), Input{Base: base})
	require.NoError(t, err)
	assert.Empty(t, rep.Skipped)
	assert.Equal(t, image.Rect(0, 0, 160, 120), out.Bounds())
	// side padding is the fill colour
	assert.Equal(t, color.RGBA{A: 255}, out.RGBAAt(5, 60))
	assert.NotEqual(t, color.RGBA{A: 255}, out.RGBAAt(80, 60))
	assert.Equal(t, before, Checksum(base))
}

func TestRenderIsDeterministic(t *testing.T) {
	in := Input{
		Base:  testFrame(200, 150),
		Stack: stack(t, effects.Spec{ID: "vintage", Intensity: 0.8}, effects.Spec{ID: "sparkles", Intensity: 1}),
		Time:  3.5,
	}
	a, _, err := newPipeline().Render(context.Background(), in)
	require.NoError(t, err)
	b, _, err := newPipeline().Render(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, Checksum(a), Checksum(b))
}

func TestBackgroundPassWithoutMaskIsNoOp(t *testing.T) {
	base := testFrame(160, 120)
	with := stack(t,
		effects.Spec{ID: "sepia", Intensity: 0.5},
		effects.Spec{ID: "blur", Intensity: 1},
		effects.Spec{ID: "warm", Intensity: 0.7},
	)
	without := stack(t,
		effects.Spec{ID: "sepia", Intensity: 0.5},
		effects.Spec{ID: "warm", Intensity: 0.7},
	)

	a, rep, err := newPipeline().Render(context.Background(), Input{Base: base, Stack: with})
	require.NoError(t, err)
	b, _, err := newPipeline().Render(context.Background(), Input{Base: base, Stack: without})
	require.NoError(t, err)

	assert.Equal(t, Checksum(b), Checksum(a))
	require.Len(t, rep.Skipped, 1)
	assert.ErrorIs(t, rep.Skipped[0].Err, effects.ErrNoMask)
}

func TestBackgroundPassWithMask(t *testing.T) {
	base := testFrame(160, 120)
	mask := image.NewGray(base.Rect)
	for y := 30; y < 90; y++ {
		for x := 50; x < 110; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	bg := solid(40, 30, color.RGBA{R: 0, G: 200, B: 0, A: 255})

	out, rep, err := newPipeline().Render(context.Background(), Input{
		Base:       base,
		Stack:      stack(t, effects.Spec{ID: "replace", Intensity: 1, Params: map[string]any{"feather": 0}}),
		Mask:       mask,
		Background: bg,
	})
	require.NoError(t, err)
	assert.Empty(t, rep.Skipped)
	assert.Equal(t, base.RGBAAt(80, 60), out.RGBAAt(80, 60))
	assert.InDelta(t, 200, out.RGBAAt(5, 5).G, 2)
}

func TestOverlayFailureKeepsPasses(t *testing.T) {
	base := testFrame(160, 120)
	passes := stack(t,
		effects.Spec{ID: "grayscale", Intensity: 1},
		effects.Spec{ID: "pixelate", Intensity: 1},
		effects.Spec{ID: "dramatic", Intensity: 0.6},
		effects.Spec{ID: "rain", Intensity: 1},
		effects.Spec{ID: "runway", Intensity: 0.5},
	)

	reference, _, err := newPipeline().Render(context.Background(), Input{Base: base, Stack: passes, Time: 1})
	require.NoError(t, err)
	plain, _, err := newPipeline().Render(context.Background(), Input{Base: base, Time: 1})
	require.NoError(t, err)

	out, rep, err := newPipeline().Render(context.Background(), Input{
		Base:  base,
		Stack: passes,
		Time:  1,
		Overlay: &Overlay{
			Image:     asset.Failed(errors.New("decode failed")),
			Transform: Transform{X: 50, Y: 50, Scale: 100, Adjustments: DefaultAdjustments()},
		},
	})
	require.NoError(t, err)

	assert.False(t, rep.Overlay)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, stageOverlay, rep.Skipped[0].Stage)
	assert.Len(t, rep.Applied, 5)
	assert.Equal(t, Checksum(reference), Checksum(out))
	assert.NotEqual(t, Checksum(plain), Checksum(out))
}

type panicPass struct{}

func (panicPass) ID() string             { return "boom" }
func (panicPass) Type() effects.PassType { return effects.Artistic }
func (panicPass) Apply(dst *image.RGBA, _ *effects.Canvas) error {
	dst.Pix[0] = 42
	panic("scratch buffer exploded")
}

func TestPanickingPassIsRolledBack(t *testing.T) {
	base := testFrame(160, 120)
	warm := stack(t, effects.Spec{ID: "warm", Intensity: 1})

	reference, _, err := newPipeline().Render(context.Background(), Input{Base: base, Stack: warm})
	require.NoError(t, err)

	withPanic := append(effects.Stack{panicPass{}}, warm...)
	out, rep, err := newPipeline().Render(context.Background(), Input{Base: base, Stack: withPanic})
	require.NoError(t, err)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, "boom", rep.Skipped[0].Pass)
	assert.Equal(t, Checksum(reference), Checksum(out))
}

func TestOverlayDrawn(t *testing.T) {
	base := solid(160, 120, color.RGBA{A: 255})
	red := solid(20, 10, color.RGBA{R: 255, A: 255})

	p := newPipeline()
	out, rep, err := p.Render(context.Background(), Input{
		Base: base,
		Overlay: &Overlay{
			Image:     asset.Ready(red),
			Transform: Transform{X: 50, Y: 50, Scale: 100, Adjustments: DefaultAdjustments()},
		},
	})
	require.NoError(t, err)
	require.True(t, rep.Overlay)

	// nominal width 40px centred at 80,60
	assert.Greater(t, out.RGBAAt(80, 60).R, uint8(200))
	assert.Greater(t, out.RGBAAt(62, 60).R, uint8(200))
	assert.Equal(t, uint8(0), out.RGBAAt(80, 20).R)
	assert.Equal(t, uint8(0), out.RGBAAt(30, 60).R)

	// rotated 90 degrees the overlay stands upright
	out, _, err = p.Render(context.Background(), Input{
		Base: base,
		Overlay: &Overlay{
			Image:     asset.Ready(red),
			Transform: Transform{X: 50, Y: 50, Scale: 100, Rotation: 90, Adjustments: DefaultAdjustments()},
		},
	})
	require.NoError(t, err)
	assert.Greater(t, out.RGBAAt(80, 75).R, uint8(200))
	assert.Equal(t, uint8(0), out.RGBAAt(62, 60).R)
}

func TestOverlayTintAndAlpha(t *testing.T) {
	white := solid(8, 8, color.RGBA{255, 255, 255, 255})
	blue := color.RGBA{B: 255, A: 255}

	out := adjust(white, Adjustments{Alpha: 0.5, Brightness: 1, Contrast: 1, Tint: 1}, &blue)
	c := out.NRGBAAt(4, 4)
	assert.Equal(t, uint8(0), c.R)
	assert.Equal(t, uint8(255), c.B)
	assert.InDelta(t, 128, c.A, 1)
}

func TestOverlayWaitTimesOut(t *testing.T) {
	p := newPipeline()
	p.OverlayWait = 5 * time.Millisecond

	pending := asset.Load(context.Background(), asset.Asset{Bytes: nil})
	_, rep, err := p.Render(context.Background(), Input{
		Base:    testFrame(10, 10),
		Overlay: &Overlay{Image: pending, Transform: Transform{Scale: 100}},
	})
	require.NoError(t, err)
	assert.False(t, rep.Overlay)
}

func TestRenderRejectsEmptyBase(t *testing.T) {
	_, _, err := newPipeline().Render(context.Background(), Input{})
	assert.Error(t, err)
}
