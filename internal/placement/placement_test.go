package placement

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/tryon/internal/pose"
)

var allCategories = []Category{Headwear, Eyewear, Top, Outerwear, Bottom, Footwear, Accessory, Category("scarf")}

func TestRecommendOuterwearOnLevelShoulders(t *testing.T) {
	s := pose.Subject{ID: 1, Score: 0.9, Keypoints: []pose.Keypoint{
		{Name: pose.LeftShoulder, X: 220, Y: 150, Confidence: 0.9},
		{Name: pose.RightShoulder, X: 420, Y: 150, Confidence: 0.9},
	}}

	rec, ok := Recommend(s, Outerwear, 640, 480)
	require.True(t, ok)
	require.True(t, rec.HasRotation)
	assert.InDelta(t, 0, rec.Rotation, 1e-3)
	assert.GreaterOrEqual(t, rec.Scale, MinScale)
	assert.LessOrEqual(t, rec.Scale, MaxScale)
	assert.Greater(t, rec.X, float32(220)/640*100)
	assert.Less(t, rec.X, float32(420)/640*100)
	assert.InDelta(t, 150.0/480*100, rec.Y, 1e-3)
	// 200px shoulders * 1.4 against a 160px nominal width
	assert.InDelta(t, 175, rec.Scale, 1e-3)
}

func TestRotationFollowsShoulderLine(t *testing.T) {
	s := pose.Subject{Keypoints: []pose.Keypoint{
		{Name: pose.LeftShoulder, X: 400, Y: 100, Confidence: 1},
		{Name: pose.RightShoulder, X: 300, Y: 200, Confidence: 1},
	}}
	rec, ok := Recommend(s, Top, 640, 480)
	require.True(t, ok)
	assert.InDelta(t, -45, rec.Rotation, 1e-3)

	rec, ok = Recommend(s, Footwear, 640, 480)
	assert.False(t, ok, "footwear has no matching keypoints")
	assert.False(t, rec.HasRotation)
}

func TestNonTorsoCategoriesLeaveRotationUnset(t *testing.T) {
	s := pose.Subject{Keypoints: []pose.Keypoint{
		{Name: pose.Nose, X: 320, Y: 80, Confidence: 0.9},
		{Name: pose.LeftShoulder, X: 260, Y: 150, Confidence: 0.9},
		{Name: pose.RightShoulder, X: 380, Y: 170, Confidence: 0.9},
	}}
	rec, ok := Recommend(s, Headwear, 640, 480)
	require.True(t, ok)
	assert.False(t, rec.HasRotation)
}

func TestRecommendFailsWithoutCategoryKeypoints(t *testing.T) {
	s := pose.Subject{Keypoints: []pose.Keypoint{
		{Name: pose.Nose, X: 10, Y: 10, Confidence: 0.9},
	}}
	_, ok := Recommend(s, Footwear, 640, 480)
	assert.False(t, ok)
	_, ok = Recommend(s, Headwear, 0, 480)
	assert.False(t, ok)
}

func TestBottomFallsBackToShoulders(t *testing.T) {
	s := pose.Subject{Keypoints: []pose.Keypoint{
		{Name: pose.LeftShoulder, X: 200, Y: 150, Confidence: 0.9},
		{Name: pose.RightShoulder, X: 300, Y: 150, Confidence: 0.9},
		{Name: pose.LeftKnee, X: 230, Y: 350, Confidence: 0.9},
	}}
	rec, ok := Recommend(s, Bottom, 400, 400)
	require.True(t, ok)
	// 100 * 0.9 against a 100px nominal width
	assert.InDelta(t, 90, rec.Scale, 1e-3)
}

func TestScaleAlwaysClamped(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		var kps []pose.Keypoint
		for n := pose.Landmark(0); n < pose.NumLandmarks; n++ {
			if r.Float32() < 0.4 {
				continue
			}
			kps = append(kps, pose.Keypoint{
				Name:       n,
				X:          r.Float32()*4000 - 1000,
				Y:          r.Float32()*4000 - 1000,
				Confidence: r.Float32(),
			})
		}
		s := pose.Subject{Keypoints: kps}
		for _, c := range allCategories {
			rec, ok := Recommend(s, c, 1+r.Intn(1920), 1+r.Intn(1080))
			if !ok {
				continue
			}
			assert.GreaterOrEqual(t, rec.Scale, MinScale)
			assert.LessOrEqual(t, rec.Scale, MaxScale)
		}
	}
}
