// Package placement computes where an overlay asset should sit on a subject:
// a weighted keypoint centroid for position, a category-specific body
// dimension for scale and the shoulder line for torso rotation.
package placement

import (
	"github.com/chewxy/math32"

	"github.com/ivlev/tryon/internal/measure"
	"github.com/ivlev/tryon/internal/pose"
)

// Category is the kind of wearable asset being placed.
type Category string

const (
	Headwear  Category = "headwear"
	Eyewear   Category = "eyewear"
	Top       Category = "top"
	Outerwear Category = "outerwear"
	Bottom    Category = "bottom"
	Footwear  Category = "footwear"
	Accessory Category = "accessory"
)

const (
	MinScale float32 = 20
	MaxScale float32 = 200

	// NominalWidth is the overlay width at scale 100, as a fraction of the
	// frame width. The compositor draws overlays against the same reference.
	NominalWidth float32 = 0.25
)

// Recommendation is expressed in percent of the frame. Rotation is in
// degrees and only meaningful when HasRotation is set.
type Recommendation struct {
	X           float32
	Y           float32
	Scale       float32
	Rotation    float32
	HasRotation bool
}

type weight struct {
	name pose.Landmark
	w    float32
}

var weights = map[Category][]weight{
	Headwear: {
		{pose.Nose, 1.0},
		{pose.LeftEye, 0.8}, {pose.RightEye, 0.8},
		{pose.LeftEar, 0.6}, {pose.RightEar, 0.6},
	},
	Eyewear: {
		{pose.LeftEye, 1.0}, {pose.RightEye, 1.0},
		{pose.Nose, 0.6},
		{pose.LeftEar, 0.3}, {pose.RightEar, 0.3},
	},
	Top: {
		{pose.LeftShoulder, 1.0}, {pose.RightShoulder, 1.0},
		{pose.LeftHip, 0.6}, {pose.RightHip, 0.6},
	},
	Outerwear: {
		{pose.LeftShoulder, 1.0}, {pose.RightShoulder, 1.0},
		{pose.LeftHip, 0.6}, {pose.RightHip, 0.6},
		{pose.LeftElbow, 0.3}, {pose.RightElbow, 0.3},
	},
	Bottom: {
		{pose.LeftHip, 1.0}, {pose.RightHip, 1.0},
		{pose.LeftKnee, 0.6}, {pose.RightKnee, 0.6},
		{pose.LeftAnkle, 0.3}, {pose.RightAnkle, 0.3},
	},
	Footwear: {
		{pose.LeftAnkle, 1.0}, {pose.RightAnkle, 1.0},
		{pose.LeftKnee, 0.3}, {pose.RightKnee, 0.3},
	},
	Accessory: {
		{pose.LeftWrist, 1.0}, {pose.RightWrist, 1.0},
		{pose.LeftElbow, 0.3}, {pose.RightElbow, 0.3},
	},
}

// fallbackWeights drive position for categories without their own table.
var fallbackWeights = []weight{
	{pose.LeftShoulder, 1.0}, {pose.RightShoulder, 1.0},
	{pose.LeftHip, 1.0}, {pose.RightHip, 1.0},
	{pose.Nose, 0.5},
}

// Known reports whether c has a dedicated weight table.
func Known(c Category) bool {
	_, ok := weights[c]
	return ok
}

// GarmentClass maps a category onto a size table, if one applies.
func GarmentClass(c Category) (measure.GarmentClass, bool) {
	switch c {
	case Top, Outerwear:
		return measure.ClassTop, true
	case Bottom:
		return measure.ClassBottom, true
	case Footwear:
		return measure.ClassFootwear, true
	case Headwear:
		return measure.ClassHeadwear, true
	}
	return "", false
}

// Recommend places an asset of category c on s. It fails when none of the
// category's weighted keypoints is present or the frame is empty.
func Recommend(s pose.Subject, c Category, frameW, frameH int) (Recommendation, bool) {
	if frameW <= 0 || frameH <= 0 {
		return Recommendation{}, false
	}
	table, ok := weights[c]
	if !ok {
		table = fallbackWeights
	}

	var sumW, sumX, sumY float32
	for _, w := range table {
		kp, ok := s.Keypoint(w.name)
		if !ok {
			continue
		}
		cw := kp.Confidence * w.w
		sumW += cw
		sumX += kp.X * cw
		sumY += kp.Y * cw
	}
	if sumW <= 0 {
		return Recommendation{}, false
	}

	fw, fh := float32(frameW), float32(frameH)
	rec := Recommendation{
		X:     sumX / sumW / fw * 100,
		Y:     sumY / sumW / fh * 100,
		Scale: clamp(scaleFor(s, c, fw), MinScale, MaxScale),
	}
	if c == Top || c == Outerwear {
		rec.Rotation, rec.HasRotation = shoulderAngle(s)
	}
	return rec, true
}

// scaleFor returns the unclamped scale percent relative to NominalWidth.
func scaleFor(s pose.Subject, c Category, frameW float32) float32 {
	nominal := frameW * NominalWidth
	toScale := func(px float32) float32 { return px / nominal * 100 }

	shoulder, hasShoulder := span(s, pose.LeftShoulder, pose.RightShoulder)

	switch c {
	case Headwear, Eyewear:
		ratio := float32(0.4)
		if c == Eyewear {
			ratio = 0.3
		}
		if hasShoulder {
			return toScale(shoulder * ratio)
		}
		// head width from eye distance, scaled down by the same ratio as
		// the shoulder estimate
		if eyes, ok := span(s, pose.LeftEye, pose.RightEye); ok {
			return toScale(eyes * 2.5 * ratio / 0.4)
		}
	case Top, Outerwear:
		if hasShoulder {
			return toScale(shoulder * 1.4)
		}
	case Bottom:
		if hips, ok := span(s, pose.LeftHip, pose.RightHip); ok {
			return toScale(hips * 1.2)
		}
		if hasShoulder {
			return toScale(shoulder * 0.9)
		}
	case Footwear:
		if ankles, ok := span(s, pose.LeftAnkle, pose.RightAnkle); ok {
			return toScale(ankles * 0.8)
		}
		if h, ok := measure.DefaultCalibration.Height(s); ok {
			return toScale(h * measure.DefaultCalibration.FootToHeight)
		}
	case Accessory:
		return 100
	}
	return boxScale(s, frameW)
}

// boxScale is the subject's box width as a percent of the frame width.
func boxScale(s pose.Subject, frameW float32) float32 {
	box := s.Box
	if box == nil {
		box = pose.BoundsOf(s.Keypoints, 0)
	}
	if box == nil || box.W <= 0 {
		return 100
	}
	return box.W / frameW * 100
}

func span(s pose.Subject, a, b pose.Landmark) (float32, bool) {
	ka, ok := s.Keypoint(a)
	if !ok {
		return 0, false
	}
	kb, ok := s.Keypoint(b)
	if !ok {
		return 0, false
	}
	return pose.Distance(ka, kb), true
}

// shoulderAngle measures the shoulder line left to right in image space so
// mirrored frames do not flip the garment.
func shoulderAngle(s pose.Subject) (float32, bool) {
	a, ok := s.Keypoint(pose.LeftShoulder)
	if !ok {
		return 0, false
	}
	b, ok := s.Keypoint(pose.RightShoulder)
	if !ok {
		return 0, false
	}
	if b.X < a.X {
		a, b = b, a
	}
	return math32.Atan2(b.Y-a.Y, b.X-a.X) * 180 / math32.Pi, true
}

func clamp(v, lo, hi float32) float32 {
	if math32.IsNaN(v) {
		return lo
	}
	return math32.Max(lo, math32.Min(hi, v))
}
