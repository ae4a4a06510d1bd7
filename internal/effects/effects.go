// Package effects implements the pixel passes applied by the compositing
// pipeline. Filter specs are validated once by Resolve into typed passes;
// rendering never re-parses ids or params.
package effects

import (
	"image"

	"github.com/pkg/errors"
)

// PassType orders passes inside the pipeline.
type PassType string

const (
	Color         PassType = "color"
	Artistic      PassType = "artistic"
	Background    PassType = "background"
	Lighting      PassType = "lighting"
	Environmental PassType = "environmental"
	Fashion       PassType = "fashion"
)

// Order is the fixed stage order of pass types.
var Order = []PassType{Color, Artistic, Background, Lighting, Environmental, Fashion}

var (
	ErrNoMask       = errors.New("background pass needs a segmentation mask")
	ErrNoBackground = errors.New("background replacement needs a background frame")
)

// Spec is the caller-facing description of one filter.
type Spec struct {
	ID        string         `yaml:"id"`
	Pass      PassType       `yaml:"pass,omitempty"`
	Intensity float32        `yaml:"intensity"`
	Params    map[string]any `yaml:"params,omitempty"`
}

// Pass is a resolved, ready to apply filter.
type Pass interface {
	ID() string
	Type() PassType
	Apply(dst *image.RGBA, c *Canvas) error
}

// Canvas carries the per-render inputs shared by passes. Scratch buffers are
// allocated on first use and live only as long as the canvas.
type Canvas struct {
	// Mask is aligned 1:1 with the frame, nil when no segmentation ran.
	Mask *image.Gray
	// Background is letterboxed to the frame, nil when none was supplied.
	Background *image.RGBA
	// Time drives animated passes, in seconds.
	Time float64

	scratch [2]*image.RGBA
}

// Scratch returns buffer slot i (0 or 1) sized to r.
func (c *Canvas) Scratch(i int, r image.Rectangle) *image.RGBA {
	if s := c.scratch[i]; s != nil && s.Rect == r {
		return s
	}
	c.scratch[i] = image.NewRGBA(r)
	return c.scratch[i]
}

// snapshot copies dst into scratch slot i.
func (c *Canvas) snapshot(i int, dst *image.RGBA) *image.RGBA {
	s := c.Scratch(i, dst.Rect)
	copy(s.Pix, dst.Pix)
	return s
}

// Stack is an ordered list of resolved passes.
type Stack []Pass

// NeedsMask reports whether any pass consumes a segmentation mask.
func (s Stack) NeedsMask() bool {
	for _, p := range s {
		if p.Type() == Background {
			return true
		}
	}
	return false
}

// Of returns the passes of type t in stack order.
func (s Stack) Of(t PassType) []Pass {
	var out []Pass
	for _, p := range s {
		if p.Type() == t {
			out = append(out, p)
		}
	}
	return out
}

// IDs lists pass ids in stack order.
func (s Stack) IDs() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.ID()
	}
	return out
}

// Resolve validates specs and builds their passes.
func Resolve(specs []Spec) (Stack, error) {
	stack := make(Stack, 0, len(specs))
	for i, spec := range specs {
		p, err := NewPass(spec)
		if err != nil {
			return nil, errors.Wrapf(err, "filter %d", i)
		}
		stack = append(stack, p)
	}
	return stack, nil
}

// NewPass builds a single pass from its spec.
func NewPass(spec Spec) (Pass, error) {
	if spec.Intensity < 0 || spec.Intensity > 1 {
		return nil, errors.Errorf("%s: intensity %.2f outside [0,1]", spec.ID, spec.Intensity)
	}
	want, ok := passTypes[spec.ID]
	if !ok {
		return nil, errors.Errorf("unknown filter: %q", spec.ID)
	}
	if spec.Pass != "" && spec.Pass != want {
		return nil, errors.Errorf("%s is a %s pass, not %s", spec.ID, want, spec.Pass)
	}

	p := params(spec.Params)
	k := spec.Intensity

	switch want {
	case Color:
		return newColorPass(spec.ID, k, p)
	case Artistic:
		return newArtisticPass(spec.ID, k, p)
	case Background:
		return newBackgroundPass(spec.ID, k, p)
	case Lighting:
		return newLightingPass(spec.ID, k)
	case Environmental:
		return newEnvironmentalPass(spec.ID, k, p)
	case Fashion:
		return newFashionPass(spec.ID, k, p)
	}
	return nil, errors.Errorf("unknown pass type: %s", want)
}

// Names lists every known filter id.
func Names() []string {
	out := make([]string, 0, len(passTypes))
	for _, t := range Order {
		out = append(out, idsByType[t]...)
	}
	return out
}

var idsByType = map[PassType][]string{
	Color:         {"sepia", "grayscale", "saturate", "hue-rotate", "vintage"},
	Artistic:      {"sketch", "painting", "pixelate", "glitch"},
	Background:    {"blur", "replace"},
	Lighting:      {"studio", "warm", "cool", "dramatic", "neon"},
	Environmental: {"rain", "snow", "sparkles", "particles"},
	Fashion:       {"fabric", "runway", "seasonal"},
}

var passTypes = func() map[string]PassType {
	m := make(map[string]PassType)
	for t, ids := range idsByType {
		for _, id := range ids {
			m[id] = t
		}
	}
	return m
}()

// base carries the identity shared by every pass.
type base struct {
	id        string
	kind      PassType
	intensity float32
}

func (b base) ID() string     { return b.id }
func (b base) Type() PassType { return b.kind }
