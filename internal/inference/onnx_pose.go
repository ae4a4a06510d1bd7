package inference

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/ivlev/tryon/internal/pose"
)

const (
	DefaultPoseInputSize = 640
	defaultPoseAnchors   = 8400
)

// ONNXPoseDetector runs a YOLOv8-pose export through onnxruntime.
type ONNXPoseDetector struct {
	ModelPath   string
	LibraryPath string
	InputName   string
	OutputName  string
	InputSize   int
	Anchors     int

	lc lifecycle
	// run serialises use of the bound tensors.
	run     sync.Mutex
	session *onnxSession
}

func NewONNXPoseDetector(modelPath, libraryPath string) *ONNXPoseDetector {
	return &ONNXPoseDetector{
		ModelPath:   modelPath,
		LibraryPath: libraryPath,
		InputName:   "images",
		OutputName:  "output0",
		InputSize:   DefaultPoseInputSize,
		Anchors:     defaultPoseAnchors,
	}
}

func (d *ONNXPoseDetector) Init(cfg Config) error {
	return d.lc.init(cfg, d.teardown, d.setup)
}

func (d *ONNXPoseDetector) setup() error {
	if d.ModelPath == "" {
		return errors.New("pose model path is empty")
	}
	if err := acquireRuntime(d.LibraryPath); err != nil {
		return err
	}
	size := int64(d.InputSize)
	s, err := newONNXSession(d.ModelPath, d.InputName, d.OutputName,
		ort.NewShape(1, 3, size, size),
		ort.NewShape(1, yoloChannels, int64(d.Anchors)))
	if err != nil {
		releaseRuntime()
		return err
	}
	d.session = s
	return nil
}

func (d *ONNXPoseDetector) teardown() error {
	if d.session == nil {
		return nil
	}
	err := d.session.Close()
	d.session = nil
	if rerr := releaseRuntime(); err == nil {
		err = rerr
	}
	return err
}

func (d *ONNXPoseDetector) Detect(ctx context.Context, frame image.Image) ([]pose.Subject, error) {
	cfg, release, err := d.lc.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if frame == nil || frame.Bounds().Empty() {
		return nil, Unavailable("pose", errors.New("empty frame"))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input, geo := letterboxSquare(frame, d.InputSize)

	d.run.Lock()
	defer d.run.Unlock()
	fillCHW(d.session.input.GetData(), input)
	if err := d.session.session.Run(); err != nil {
		return nil, Unavailable("pose", errors.Wrap(err, "run pose model"))
	}
	return decodeYOLOPose(d.session.output.GetData(), d.Anchors, cfg.MinPoseScore, cfg.Limit(), geo), nil
}

func (d *ONNXPoseDetector) Dispose() error {
	return d.lc.dispose(d.teardown)
}
