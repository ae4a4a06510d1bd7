package pose

import "sort"

// tieMargin is the score gap under which box area decides between the top
// two candidates.
const tieMargin float32 = 0.1

// scoreEpsilon absorbs float32 rounding at the margin boundary.
const scoreEpsilon float32 = 1e-6

// SelectMain picks the subject that drives placement. Candidates are ranked
// by score; when the top two are within tieMargin the larger box wins, and
// the lowest id settles anything left.
func SelectMain(subjects []Subject) (Subject, bool) {
	switch len(subjects) {
	case 0:
		return Subject{}, false
	case 1:
		return subjects[0], true
	}

	ranked := append([]Subject(nil), subjects...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})

	a, b := ranked[0], ranked[1]
	if a.Score-b.Score > tieMargin+scoreEpsilon {
		return a, true
	}
	areaA, areaB := a.BoxArea(), b.BoxArea()
	switch {
	case areaA > areaB:
		return a, true
	case areaB > areaA:
		return b, true
	case b.ID < a.ID:
		return b, true
	default:
		return a, true
	}
}
