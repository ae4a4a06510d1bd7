// Package renderer composites one output frame: letterboxed base, ordered
// effect passes, masked background and the transformed overlay asset.
package renderer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ivlev/tryon/internal/effects"
)

const stageOverlay = "overlay"

// DefaultOverlayWait bounds how long a render waits for the asset decode.
const DefaultOverlayWait = 150 * time.Millisecond

// Input is everything one render consumes. Nothing in it is modified.
type Input struct {
	Base    image.Image
	Overlay *Overlay
	Stack   effects.Stack
	// Mask is aligned with Base, nil when segmentation did not run.
	Mask       *image.Gray
	Background image.Image
	// Time is the animation clock for environmental passes, in seconds.
	Time float64
}

// StageError records a stage that was skipped.
type StageError struct {
	Stage string
	Pass  string
	Err   error
}

func (e StageError) Error() string {
	if e.Pass == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s/%s: %v", e.Stage, e.Pass, e.Err)
}

// Report lists what a render applied and what it skipped.
type Report struct {
	Applied []string
	Skipped []StageError
	Overlay bool
}

// Pipeline renders frames of a fixed output size. It holds no per-frame
// state and may be shared by sequential renders.
type Pipeline struct {
	Width, Height int
	Fill          color.RGBA
	OverlayWait   time.Duration

	log zerolog.Logger
}

func New(width, height int, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		Width:       width,
		Height:      height,
		Fill:        color.RGBA{A: 255},
		OverlayWait: DefaultOverlayWait,
		log:         logger.With().Str("component", "renderer").Logger(),
	}
}

// Render builds a new frame. Per-stage failures are isolated: the stage is
// rolled back, recorded in the report and rendering continues.
func (p *Pipeline) Render(ctx context.Context, in Input) (*image.RGBA, Report, error) {
	var rep Report
	if in.Base == nil || in.Base.Bounds().Empty() {
		return nil, rep, errors.New("render: empty base frame")
	}
	if p.Width <= 0 || p.Height <= 0 {
		return nil, rep, errors.Errorf("render: invalid output size %dx%d", p.Width, p.Height)
	}

	bb := in.Base.Bounds()
	fit := ComputeFit(bb.Dx(), bb.Dy(), p.Width, p.Height)
	dst := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(p.Fill), image.Point{}, draw.Src)
	Letterbox(dst, in.Base, fit)

	canvas := &effects.Canvas{Time: in.Time}
	if in.Mask != nil {
		if in.Mask.Bounds().Dx() == bb.Dx() && in.Mask.Bounds().Dy() == bb.Dy() {
			canvas.Mask = AlignMask(in.Mask, fit, p.Width, p.Height)
		} else {
			p.log.Warn().
				Str("mask", in.Mask.Bounds().String()).
				Str("frame", bb.String()).
				Msg("segmentation mask does not match frame, ignoring")
		}
	}
	if in.Background != nil && in.Stack.NeedsMask() {
		canvas.Background = Cover(in.Background, p.Width, p.Height)
	}

	// undo holds the frame before each stage so a failing stage leaves no trace
	undo := image.NewRGBA(dst.Rect)

	for _, kind := range effects.Order {
		for _, pass := range in.Stack.Of(kind) {
			if kind == effects.Background && canvas.Mask == nil {
				rep.Skipped = append(rep.Skipped, StageError{Stage: string(kind), Pass: pass.ID(), Err: effects.ErrNoMask})
				continue
			}
			copy(undo.Pix, dst.Pix)
			err := p.runStage(string(kind), pass.ID(), func() error {
				return pass.Apply(dst, canvas)
			})
			if err != nil {
				copy(dst.Pix, undo.Pix)
				rep.Skipped = append(rep.Skipped, StageError{Stage: string(kind), Pass: pass.ID(), Err: err})
				continue
			}
			rep.Applied = append(rep.Applied, pass.ID())
		}
	}

	if ov := in.Overlay; ov != nil && ov.Image != nil {
		copy(undo.Pix, dst.Pix)
		err := p.runStage(stageOverlay, "", func() error {
			img, err := ov.Image.Wait(ctx, p.OverlayWait)
			if err != nil {
				return err
			}
			return drawOverlay(dst, img, ov.Transform, ov.Tint)
		})
		if err != nil {
			copy(dst.Pix, undo.Pix)
			rep.Skipped = append(rep.Skipped, StageError{Stage: stageOverlay, Err: err})
		} else {
			rep.Overlay = true
			rep.Applied = append(rep.Applied, stageOverlay)
		}
	}

	return dst, rep, nil
}

func (p *Pipeline) runStage(stage, pass string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
		if err != nil {
			p.log.Warn().Err(err).Str("stage", stage).Str("pass", pass).Msg("stage skipped")
		}
	}()
	return fn()
}
