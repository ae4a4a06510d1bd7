package inference

import (
	"context"
	"image"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/tryon/internal/pose"
)

// Fixture is a recorded sequence of detections.
type Fixture struct {
	Version string         `yaml:"version"`
	Frames  []FixtureFrame `yaml:"frames"`
}

type FixtureFrame struct {
	Subjects []FixtureSubject `yaml:"subjects"`
}

type FixtureSubject struct {
	ID        uint32            `yaml:"id"`
	Score     float32           `yaml:"score"`
	Keypoints []FixtureKeypoint `yaml:"keypoints"`
}

type FixtureKeypoint struct {
	Name  string  `yaml:"name"`
	X     float32 `yaml:"x"`
	Y     float32 `yaml:"y"`
	Score float32 `yaml:"score"`
}

// WriteFixture writes a fixture to a YAML file
func WriteFixture(f *Fixture, path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadFixture reads a fixture from a YAML file
func ReadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parse fixture %s", path)
	}
	return &f, nil
}

// FixtureOf records subjects frame by frame.
func FixtureOf(frames ...[]pose.Subject) *Fixture {
	f := &Fixture{Version: "1"}
	for _, subjects := range frames {
		var ff FixtureFrame
		for _, s := range subjects {
			fs := FixtureSubject{ID: s.ID, Score: s.Score}
			for _, k := range s.Keypoints {
				fs.Keypoints = append(fs.Keypoints, FixtureKeypoint{Name: k.Name.String(), X: k.X, Y: k.Y, Score: k.Confidence})
			}
			ff.Subjects = append(ff.Subjects, fs)
		}
		f.Frames = append(f.Frames, ff)
	}
	return f
}

// Subjects decodes the fixture; unknown landmark names are an error.
func (f *Fixture) Subjects() ([][]pose.Subject, error) {
	out := make([][]pose.Subject, 0, len(f.Frames))
	for i, ff := range f.Frames {
		frame := make([]pose.Subject, 0, len(ff.Subjects))
		for _, fs := range ff.Subjects {
			s := pose.Subject{ID: fs.ID, Score: fs.Score}
			for _, k := range fs.Keypoints {
				name, ok := pose.ParseLandmark(k.Name)
				if !ok {
					return nil, errors.Errorf("frame %d: unknown landmark %q", i, k.Name)
				}
				s.Keypoints = append(s.Keypoints, pose.Keypoint{Name: name, X: k.X, Y: k.Y, Confidence: k.Score})
			}
			frame = append(frame, s)
		}
		out = append(out, frame)
	}
	return out, nil
}

// FixtureDetector replays recorded detections, cycling through the frames.
type FixtureDetector struct {
	Path  string
	Delay time.Duration

	lc     lifecycle
	mu     sync.Mutex
	frames [][]pose.Subject
	next   int
}

func NewFixtureDetector(path string) *FixtureDetector {
	return &FixtureDetector{Path: path}
}

// NewStaticDetector replays the given frames without a file.
func NewStaticDetector(frames ...[]pose.Subject) *FixtureDetector {
	return &FixtureDetector{frames: frames}
}

func (d *FixtureDetector) Init(cfg Config) error {
	return d.lc.init(cfg, d.teardown, d.setup)
}

func (d *FixtureDetector) setup() error {
	d.next = 0
	if d.Path == "" {
		return nil
	}
	f, err := ReadFixture(d.Path)
	if err != nil {
		return err
	}
	frames, err := f.Subjects()
	if err != nil {
		return err
	}
	d.frames = frames
	return nil
}

func (d *FixtureDetector) teardown() error { return nil }

func (d *FixtureDetector) Detect(ctx context.Context, _ image.Image) ([]pose.Subject, error) {
	cfg, release, err := d.lc.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if d.Delay > 0 {
		select {
		case <-time.After(d.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.frames) == 0 {
		return nil, nil
	}
	frame := d.frames[d.next%len(d.frames)]
	d.next++

	out := make([]pose.Subject, 0, len(frame))
	for _, s := range frame {
		if len(out) >= cfg.Limit() {
			break
		}
		out = append(out, s.Clone())
	}
	return out, nil
}

func (d *FixtureDetector) Dispose() error {
	return d.lc.dispose(d.teardown)
}

// RecordingDetector passes detections through and keeps a copy of each
// frame's subjects so a session can be replayed by a FixtureDetector.
type RecordingDetector struct {
	Detector

	mu     sync.Mutex
	frames [][]pose.Subject
}

func NewRecordingDetector(d Detector) *RecordingDetector {
	return &RecordingDetector{Detector: d}
}

func (r *RecordingDetector) Detect(ctx context.Context, frame image.Image) ([]pose.Subject, error) {
	subjects, err := r.Detector.Detect(ctx, frame)
	if err != nil {
		return subjects, err
	}
	recorded := make([]pose.Subject, len(subjects))
	for i, s := range subjects {
		recorded[i] = s.Clone()
	}
	r.mu.Lock()
	r.frames = append(r.frames, recorded)
	r.mu.Unlock()
	return subjects, nil
}

// Fixture returns everything recorded so far.
func (r *RecordingDetector) Fixture() *Fixture {
	r.mu.Lock()
	defer r.mu.Unlock()
	return FixtureOf(r.frames...)
}
