// Package pose holds the keypoint data model and the per-session temporal
// state built on top of it: confidence filtering, recency-weighted smoothing,
// main-subject selection and IoU tracking.
package pose

import (
	"github.com/chewxy/math32"
)

// Landmark names a body keypoint. Values follow the COCO-17 order emitted by
// YOLO-pose style detectors.
type Landmark int

const (
	Nose Landmark = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle

	NumLandmarks
)

var landmarkNames = [NumLandmarks]string{
	"nose",
	"left_eye",
	"right_eye",
	"left_ear",
	"right_ear",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
}

func (l Landmark) String() string {
	if l < 0 || l >= NumLandmarks {
		return "unknown"
	}
	return landmarkNames[l]
}

// ParseLandmark resolves a snake_case landmark name.
func ParseLandmark(name string) (Landmark, bool) {
	for i, n := range landmarkNames {
		if n == name {
			return Landmark(i), true
		}
	}
	return 0, false
}

// Keypoint is a named landmark in frame pixel space.
type Keypoint struct {
	Name       Landmark
	X          float32
	Y          float32
	Confidence float32
}

// Distance returns the Euclidean distance between two keypoints.
func Distance(a, b Keypoint) float32 {
	return math32.Hypot(b.X-a.X, b.Y-a.Y)
}

// Rect is an axis-aligned box in frame pixel space.
type Rect struct {
	X, Y, W, H float32
}

func (r Rect) Area() float32 {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// Intersection returns the overlapping area of two boxes.
func (r Rect) Intersection(o Rect) float32 {
	x1 := math32.Max(r.X, o.X)
	y1 := math32.Max(r.Y, o.Y)
	x2 := math32.Min(r.X+r.W, o.X+o.W)
	y2 := math32.Min(r.Y+r.H, o.Y+o.H)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	return (x2 - x1) * (y2 - y1)
}

// IoU returns intersection over union, 0 for disjoint or empty boxes.
func (r Rect) IoU(o Rect) float32 {
	inter := r.Intersection(o)
	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Subject is one detected person in one frame. Keypoint names are unique.
type Subject struct {
	ID        uint32
	Keypoints []Keypoint
	Score     float32
	Box       *Rect
}

// Keypoint looks up a landmark by name.
func (s Subject) Keypoint(name Landmark) (Keypoint, bool) {
	for _, kp := range s.Keypoints {
		if kp.Name == name {
			return kp, true
		}
	}
	return Keypoint{}, false
}

// Has reports whether every named landmark is present.
func (s Subject) Has(names ...Landmark) bool {
	for _, n := range names {
		if _, ok := s.Keypoint(n); !ok {
			return false
		}
	}
	return true
}

// BoxArea is the bounding-box area, 0 when no box is known.
func (s Subject) BoxArea() float32 {
	if s.Box == nil {
		return 0
	}
	return s.Box.Area()
}

// Clone returns a deep copy.
func (s Subject) Clone() Subject {
	out := s
	out.Keypoints = append([]Keypoint(nil), s.Keypoints...)
	if s.Box != nil {
		b := *s.Box
		out.Box = &b
	}
	return out
}

// BoundsOf returns the box spanning keypoints whose confidence exceeds
// minConfidence, or nil when none qualify.
func BoundsOf(kps []Keypoint, minConfidence float32) *Rect {
	var (
		found                  bool
		minX, minY, maxX, maxY float32
	)
	for _, kp := range kps {
		if kp.Confidence <= minConfidence {
			continue
		}
		if !found {
			minX, maxX, minY, maxY = kp.X, kp.X, kp.Y, kp.Y
			found = true
			continue
		}
		minX = math32.Min(minX, kp.X)
		maxX = math32.Max(maxX, kp.X)
		minY = math32.Min(minY, kp.Y)
		maxY = math32.Max(maxY, kp.Y)
	}
	if !found {
		return nil
	}
	return &Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}
