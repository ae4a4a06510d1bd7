package pose

import "sort"

// DefaultTrackIoU is the minimum overlap for a subject to inherit a track id.
const DefaultTrackIoU float32 = 0.3

// Tracker assigns ids that stay stable across frames by greedily matching
// each subject's box to the previous frame's boxes.
type Tracker struct {
	MinIoU float32

	nextID uint32
	prev   []Subject
}

func NewTracker() *Tracker {
	return &Tracker{MinIoU: DefaultTrackIoU, nextID: 1}
}

// Reset forgets all tracks; ids restart from 1.
func (t *Tracker) Reset() {
	t.prev = nil
	t.nextID = 1
}

type trackPair struct {
	cur, prev int
	iou       float32
}

// Assign returns copies of subjects with tracked ids. Subjects without a box
// get one derived from their keypoints before matching.
func (t *Tracker) Assign(subjects []Subject) []Subject {
	out := make([]Subject, len(subjects))
	for i, s := range subjects {
		out[i] = s.Clone()
		if out[i].Box == nil {
			out[i].Box = BoundsOf(out[i].Keypoints, 0)
		}
	}

	var pairs []trackPair
	for i, cur := range out {
		if cur.Box == nil {
			continue
		}
		for j, p := range t.prev {
			if p.Box == nil {
				continue
			}
			if iou := cur.Box.IoU(*p.Box); iou >= t.MinIoU {
				pairs = append(pairs, trackPair{cur: i, prev: j, iou: iou})
			}
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].iou > pairs[b].iou })

	matched := make([]bool, len(out))
	used := make([]bool, len(t.prev))
	for _, p := range pairs {
		if matched[p.cur] || used[p.prev] {
			continue
		}
		out[p.cur].ID = t.prev[p.prev].ID
		matched[p.cur] = true
		used[p.prev] = true
	}
	for i := range out {
		if !matched[i] {
			out[i].ID = t.nextID
			t.nextID++
		}
	}

	t.prev = cloneSubjects(out)
	return out
}
