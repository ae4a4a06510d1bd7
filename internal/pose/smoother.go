package pose

const (
	// DefaultStreamWindow is the smoothing window for continuous sessions.
	DefaultStreamWindow = 5
	// DefaultStillWindow disables smoothing for one-shot sessions.
	DefaultStillWindow = 1

	DefaultMinKeypointScore float32 = 0.4
	DefaultMinPoseScore     float32 = 0.25

	// minSurvivingKeypoints is the fewest keypoints a subject may keep after
	// confidence filtering.
	minSurvivingKeypoints = 5
)

// SmootherConfig controls filtering thresholds and the history window.
type SmootherConfig struct {
	WindowSize       int
	MinKeypointScore float32
	MinPoseScore     float32
}

// DefaultSmootherConfig returns stream defaults.
func DefaultSmootherConfig() SmootherConfig {
	return SmootherConfig{
		WindowSize:       DefaultStreamWindow,
		MinKeypointScore: DefaultMinKeypointScore,
		MinPoseScore:     DefaultMinPoseScore,
	}
}

// Smoother keeps a bounded ring of filtered frames and averages keypoint
// positions across it. It is owned by a single session and is not safe for
// concurrent use.
type Smoother struct {
	cfg     SmootherConfig
	ring    [][]Subject
	next    int
	filled  int
	ordered [][]Subject
}

// NewSmoother creates a smoother; a window below 1 is treated as 1.
func NewSmoother(cfg SmootherConfig) *Smoother {
	if cfg.WindowSize < 1 {
		cfg.WindowSize = 1
	}
	return &Smoother{
		cfg:     cfg,
		ring:    make([][]Subject, cfg.WindowSize),
		ordered: make([][]Subject, 0, cfg.WindowSize),
	}
}

func (s *Smoother) Config() SmootherConfig { return s.cfg }

// Len is the number of frames currently held.
func (s *Smoother) Len() int { return s.filled }

// Reset drops all history.
func (s *Smoother) Reset() {
	for i := range s.ring {
		s.ring[i] = nil
	}
	s.next, s.filled = 0, 0
}

// Filter removes keypoints below MinKeypointScore and subjects below
// MinPoseScore or left with too few keypoints. Input is not modified.
func (s *Smoother) Filter(in []Subject) []Subject {
	out := make([]Subject, 0, len(in))
	for _, subj := range in {
		if subj.Score < s.cfg.MinPoseScore {
			continue
		}
		kept := make([]Keypoint, 0, len(subj.Keypoints))
		for _, kp := range subj.Keypoints {
			if kp.Confidence < s.cfg.MinKeypointScore {
				continue
			}
			kept = append(kept, kp)
		}
		if len(kept) < minSurvivingKeypoints {
			continue
		}
		c := subj.Clone()
		c.Keypoints = kept
		out = append(out, c)
	}
	return out
}

// Smooth filters the incoming subjects, pushes them into the history and
// returns the recency-weighted average for every subject in the current
// frame. The first frame of a history is returned as filtered, unsmoothed.
func (s *Smoother) Smooth(incoming []Subject) []Subject {
	current := s.Filter(incoming)
	first := s.filled == 0

	s.ring[s.next] = current
	s.next = (s.next + 1) % len(s.ring)
	if s.filled < len(s.ring) {
		s.filled++
	}

	if first || len(s.ring) == 1 {
		return cloneSubjects(current)
	}

	window := s.window()
	n := float32(len(window))

	out := make([]Subject, 0, len(current))
	for _, subj := range current {
		smoothed := make([]Keypoint, 0, len(subj.Keypoints))
		for _, kp := range subj.Keypoints {
			var sumW, sumX, sumY, sumConf float32
			samples := 0
			for i, frame := range window {
				sample, ok := findKeypoint(frame, subj.ID, kp.Name)
				if !ok {
					continue
				}
				w := sample.Confidence * float32(i+1) / n
				sumW += w
				sumX += sample.X * w
				sumY += sample.Y * w
				sumConf += sample.Confidence
				samples++
			}
			if sumW <= 0 {
				continue
			}
			smoothed = append(smoothed, Keypoint{
				Name:       kp.Name,
				X:          sumX / sumW,
				Y:          sumY / sumW,
				Confidence: sumConf / float32(samples),
			})
		}
		out = append(out, Subject{
			ID:        subj.ID,
			Keypoints: smoothed,
			Score:     subj.Score,
			Box:       BoundsOf(smoothed, s.cfg.MinKeypointScore),
		})
	}
	return out
}

// window returns held frames oldest first.
func (s *Smoother) window() [][]Subject {
	s.ordered = s.ordered[:0]
	start := (s.next - s.filled + len(s.ring)) % len(s.ring)
	for i := 0; i < s.filled; i++ {
		s.ordered = append(s.ordered, s.ring[(start+i)%len(s.ring)])
	}
	return s.ordered
}

func findKeypoint(frame []Subject, id uint32, name Landmark) (Keypoint, bool) {
	for _, subj := range frame {
		if subj.ID == id {
			return subj.Keypoint(name)
		}
	}
	return Keypoint{}, false
}

func cloneSubjects(in []Subject) []Subject {
	out := make([]Subject, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}
