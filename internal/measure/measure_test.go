package measure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/tryon/internal/pose"
)

func subject(kps ...pose.Keypoint) pose.Subject {
	return pose.Subject{ID: 1, Score: 0.9, Keypoints: kps}
}

func kp(name pose.Landmark, x, y, c float32) pose.Keypoint {
	return pose.Keypoint{Name: name, X: x, Y: y, Confidence: c}
}

func TestEstimateRequiresCoreKeypoints(t *testing.T) {
	s := subject(
		kp(pose.Nose, 50, 0, 0.9),
		kp(pose.LeftShoulder, 0, 50, 0.9),
		kp(pose.RightShoulder, 100, 50, 0.9),
		kp(pose.LeftHip, 10, 200, 0.9),
	)
	_, ok := Estimate(s, 0)
	assert.False(t, ok)
}

func TestEstimatePixelScale(t *testing.T) {
	// nose-to-ankle span chosen so that height is 900px
	span := float32(900) / DefaultCalibration.AnkleSpanToHeight
	s := subject(
		kp(pose.Nose, 50, 0, 0.9),
		kp(pose.LeftShoulder, 0, 0, 0.9),
		kp(pose.RightShoulder, 100, 0, 0.9),
		kp(pose.LeftHip, 10, 300, 0.9),
		kp(pose.RightHip, 90, 300, 0.9),
		kp(pose.LeftAnkle, 10, span, 0.8),
	)

	m, ok := Estimate(s, 180)
	require.True(t, ok)
	assert.InDelta(t, 900, m.TotalHeight, 1e-2)
	assert.InDelta(t, 0.2, m.PixelsToCm, 1e-5)

	shoulderCm, ok := m.Cm(m.ShoulderWidth)
	require.True(t, ok)
	assert.InDelta(t, 20, shoulderCm, 1e-3)

	assert.InDelta(t, 110, m.ChestWidth, 1e-3)
	assert.InDelta(t, 80, m.HipWidth, 1e-3)
	assert.InDelta(t, 72, m.WaistWidth, 1e-3)
	assert.InDelta(t, span-300, m.Inseam, 1e-2)
}

func TestEstimateWithoutHeightReference(t *testing.T) {
	s := subject(
		kp(pose.Nose, 50, 0, 0.9),
		kp(pose.LeftShoulder, 0, 50, 0.9),
		kp(pose.RightShoulder, 100, 50, 0.9),
		kp(pose.LeftHip, 10, 200, 0.9),
		kp(pose.RightHip, 90, 200, 0.9),
		kp(pose.LeftKnee, 10, 300, 0.9),
		kp(pose.RightKnee, 90, 300, 0.9),
	)
	m, ok := Estimate(s, 0)
	require.True(t, ok)
	assert.False(t, m.Scaled())
	assert.Zero(t, m.Inseam)
	assert.InDelta(t, 300*1.9, m.TotalHeight, 1e-3)

	_, ok = SizeFor(m, ClassTop)
	assert.False(t, ok)
}

func TestInseamUsesMoreConfidentSide(t *testing.T) {
	s := subject(
		kp(pose.Nose, 50, 0, 0.9),
		kp(pose.LeftShoulder, 0, 50, 0.9),
		kp(pose.RightShoulder, 100, 50, 0.9),
		kp(pose.LeftHip, 0, 200, 0.5),
		kp(pose.RightHip, 100, 200, 0.9),
		kp(pose.LeftAnkle, 0, 400, 0.5),
		kp(pose.RightAnkle, 100, 500, 0.9),
	)
	m, ok := Estimate(s, 0)
	require.True(t, ok)
	assert.InDelta(t, 300, m.Inseam, 1e-3)
}

func TestSizeBoundariesAreExclusive(t *testing.T) {
	tests := []struct {
		name  string
		class GarmentClass
		m     Measurements
		want  string
	}{
		{"top below first bound", ClassTop, Measurements{ChestWidth: 89.9, PixelsToCm: 1}, "XS"},
		{"top on first bound", ClassTop, Measurements{ChestWidth: 90, PixelsToCm: 1}, "S"},
		{"top on last bound", ClassTop, Measurements{ChestWidth: 125, PixelsToCm: 1}, "XXL"},
		{"top far above", ClassTop, Measurements{ChestWidth: 400, PixelsToCm: 1}, "XXL"},
		{"top scaled", ClassTop, Measurements{ChestWidth: 500, PixelsToCm: 0.2}, "M"},
		{"bottom averages waist and hip", ClassBottom, Measurements{WaistWidth: 90, HipWidth: 100, PixelsToCm: 1}, "M"},
		{"footwear from height", ClassFootwear, Measurements{TotalHeight: 170, PixelsToCm: 1}, "8"},
		{"headwear small", ClassHeadwear, Measurements{TotalHeight: 130, PixelsToCm: 1}, "XS"},
		{"headwear large", ClassHeadwear, Measurements{TotalHeight: 170, PixelsToCm: 1}, "XL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SizeFor(tt.m, tt.class)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSizeForNeedsHeightForFootwear(t *testing.T) {
	_, ok := SizeFor(Measurements{ChestWidth: 100, PixelsToCm: 1}, ClassFootwear)
	assert.False(t, ok)
	_, ok = SizeFor(Measurements{PixelsToCm: 1}, GarmentClass("gloves"))
	assert.False(t, ok)
}

func TestProportional(t *testing.T) {
	m := DefaultCalibration.Proportional(200)
	assert.InDelta(t, 51.8, m.ShoulderWidth, 1e-3)
	assert.InDelta(t, 96, m.Inseam, 1e-3)
	assert.InDelta(t, 30, m.WaistWidth, 1e-3)

	sizes := DefaultCalibration.Sizes(m)
	assert.Contains(t, sizes, ClassTop)
	assert.Contains(t, sizes, ClassFootwear)
}
