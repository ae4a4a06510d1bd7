package inference

import (
	"sort"

	"github.com/ivlev/tryon/internal/pose"
)

const (
	yoloKeypoints = 17
	// yoloChannels is box(4) + score(1) + 17 * (x, y, visibility).
	yoloChannels = 5 + yoloKeypoints*3

	defaultNMSIoU float32 = 0.45
)

// decodeYOLOPose turns a channel-major [56, anchors] output into subjects in
// frame coordinates, suppressing overlapping boxes and keeping at most limit.
func decodeYOLOPose(out []float32, anchors int, minScore float32, limit int, geo letterGeom) []pose.Subject {
	if len(out) < yoloChannels*anchors {
		return nil
	}
	at := func(ch, i int) float32 { return out[ch*anchors+i] }

	var cands []pose.Subject
	for i := 0; i < anchors; i++ {
		score := at(4, i)
		if score < minScore {
			continue
		}
		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		x0, y0 := geo.toFrame(cx-w/2, cy-h/2)
		x1, y1 := geo.toFrame(cx+w/2, cy+h/2)

		kps := make([]pose.Keypoint, 0, yoloKeypoints)
		for k := 0; k < yoloKeypoints; k++ {
			x, y := geo.toFrame(at(5+k*3, i), at(6+k*3, i))
			kps = append(kps, pose.Keypoint{
				Name:       pose.Landmark(k),
				X:          x,
				Y:          y,
				Confidence: at(7+k*3, i),
			})
		}
		cands = append(cands, pose.Subject{
			Score:     score,
			Keypoints: kps,
			Box:       &pose.Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0},
		})
	}

	sort.SliceStable(cands, func(a, b int) bool { return cands[a].Score > cands[b].Score })

	var kept []pose.Subject
	for _, c := range cands {
		if len(kept) >= limit {
			break
		}
		suppressed := false
		for _, k := range kept {
			if c.Box.IoU(*k.Box) > defaultNMSIoU {
				suppressed = true
				break
			}
		}
		if !suppressed {
			c.ID = uint32(len(kept) + 1)
			kept = append(kept, c)
		}
	}
	return kept
}
