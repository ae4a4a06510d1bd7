// Package measure turns smoothed keypoints into linear body measurements and
// garment size buckets.
package measure

import (
	"github.com/chewxy/math32"

	"github.com/ivlev/tryon/internal/pose"
)

// Calibration holds the anthropometric constants used by the estimator.
// They are calibration data, not derived physics, and may be replaced.
type Calibration struct {
	// Proportions of total height.
	HeadToHeight     float32
	ShoulderToHeight float32
	WaistToHeight    float32
	InseamToHeight   float32
	FootToHeight     float32

	ChestToShoulder float32
	WaistToHip      float32

	// Multipliers from a nose-to-ankle or nose-to-knee span to full height.
	AnkleSpanToHeight float32
	KneeSpanToHeight  float32
}

// DefaultCalibration is the stock calibration table.
var DefaultCalibration = Calibration{
	HeadToHeight:      0.13,
	ShoulderToHeight:  0.259,
	WaistToHeight:     0.15,
	InseamToHeight:    0.48,
	FootToHeight:      0.15,
	ChestToShoulder:   1.1,
	WaistToHip:        0.9,
	AnkleSpanToHeight: 1.15,
	KneeSpanToHeight:  1.9,
}

// Measurements are in pixels. PixelsToCm is zero when no real-world height
// reference was supplied.
type Measurements struct {
	ShoulderWidth float32
	ChestWidth    float32
	WaistWidth    float32
	HipWidth      float32
	Inseam        float32
	TotalHeight   float32
	PixelsToCm    float32
}

// Scaled reports whether a pixel to centimetre factor is known.
func (m Measurements) Scaled() bool { return m.PixelsToCm > 0 }

// Cm converts a pixel length; ok is false without a scale.
func (m Measurements) Cm(px float32) (float32, bool) {
	if !m.Scaled() {
		return 0, false
	}
	return px * m.PixelsToCm, true
}

var required = []pose.Landmark{
	pose.Nose,
	pose.LeftShoulder, pose.RightShoulder,
	pose.LeftHip, pose.RightHip,
}

// Estimate measures s with the default calibration. knownHeightCm <= 0 means
// no height reference.
func Estimate(s pose.Subject, knownHeightCm float32) (Measurements, bool) {
	return DefaultCalibration.Estimate(s, knownHeightCm)
}

// Estimate needs the nose, both shoulders and both hips.
func (c Calibration) Estimate(s pose.Subject, knownHeightCm float32) (Measurements, bool) {
	if !s.Has(required...) {
		return Measurements{}, false
	}
	ls, _ := s.Keypoint(pose.LeftShoulder)
	rs, _ := s.Keypoint(pose.RightShoulder)
	lh, _ := s.Keypoint(pose.LeftHip)
	rh, _ := s.Keypoint(pose.RightHip)

	var m Measurements
	m.ShoulderWidth = pose.Distance(ls, rs)
	m.ChestWidth = m.ShoulderWidth * c.ChestToShoulder
	m.HipWidth = pose.Distance(lh, rh)
	m.WaistWidth = m.HipWidth * c.WaistToHip
	m.Inseam = inseam(s, lh, rh)

	if h, ok := c.Height(s); ok {
		m.TotalHeight = h
		if knownHeightCm > 0 && h > 0 {
			m.PixelsToCm = knownHeightCm / h
		}
	}
	return m, true
}

// Height estimates the full body height in pixels from the nose and the
// ankles, falling back to the knees.
func (c Calibration) Height(s pose.Subject) (float32, bool) {
	nose, ok := s.Keypoint(pose.Nose)
	if !ok {
		return 0, false
	}
	if ankle, ok := bestAnkle(s); ok {
		return math32.Abs(nose.Y-ankle.Y) * c.AnkleSpanToHeight, true
	}
	lk, lok := s.Keypoint(pose.LeftKnee)
	rk, rok := s.Keypoint(pose.RightKnee)
	var kneeY float32
	switch {
	case lok && rok:
		kneeY = (lk.Y + rk.Y) / 2
	case lok:
		kneeY = lk.Y
	case rok:
		kneeY = rk.Y
	default:
		return 0, false
	}
	return math32.Abs(nose.Y-kneeY) * c.KneeSpanToHeight, true
}

// Proportional derives measurements in centimetres from a stated height
// alone, for when no body keypoints are available.
func (c Calibration) Proportional(heightCm float32) Measurements {
	shoulder := heightCm * c.ShoulderToHeight
	waist := heightCm * c.WaistToHeight
	return Measurements{
		ShoulderWidth: shoulder,
		ChestWidth:    shoulder * c.ChestToShoulder,
		WaistWidth:    waist,
		HipWidth:      waist / c.WaistToHip,
		Inseam:        heightCm * c.InseamToHeight,
		TotalHeight:   heightCm,
		PixelsToCm:    1,
	}
}

func bestAnkle(s pose.Subject) (pose.Keypoint, bool) {
	la, lok := s.Keypoint(pose.LeftAnkle)
	ra, rok := s.Keypoint(pose.RightAnkle)
	switch {
	case lok && rok:
		if ra.Confidence > la.Confidence {
			return ra, true
		}
		return la, true
	case lok:
		return la, true
	case rok:
		return ra, true
	}
	return pose.Keypoint{}, false
}

// inseam uses the side whose hip and ankle are jointly most confident.
func inseam(s pose.Subject, lh, rh pose.Keypoint) float32 {
	la, lok := s.Keypoint(pose.LeftAnkle)
	ra, rok := s.Keypoint(pose.RightAnkle)
	switch {
	case lok && rok:
		if rh.Confidence+ra.Confidence > lh.Confidence+la.Confidence {
			return pose.Distance(rh, ra)
		}
		return pose.Distance(lh, la)
	case lok:
		return pose.Distance(lh, la)
	case rok:
		return pose.Distance(rh, ra)
	}
	return 0
}
