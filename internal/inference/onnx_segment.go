package inference

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/tryon/internal/segment"
)

const (
	DefaultSegmentInputSize = 256
	// minMaskRegion drops foreground islands smaller than this, in model pixels.
	minMaskRegion = 64
)

// ONNXSegmenter runs a selfie-segmentation style model that takes NHWC RGB
// and returns one person-probability channel.
type ONNXSegmenter struct {
	ModelPath   string
	LibraryPath string
	InputName   string
	OutputName  string
	InputSize   int

	lc      lifecycle
	run     sync.Mutex
	session *onnxSession
}

func NewONNXSegmenter(modelPath, libraryPath string) *ONNXSegmenter {
	return &ONNXSegmenter{
		ModelPath:   modelPath,
		LibraryPath: libraryPath,
		InputName:   "input",
		OutputName:  "output",
		InputSize:   DefaultSegmentInputSize,
	}
}

func (s *ONNXSegmenter) Init(cfg Config) error {
	return s.lc.init(cfg, s.teardown, s.setup)
}

func (s *ONNXSegmenter) setup() error {
	if s.ModelPath == "" {
		return errors.New("segmentation model path is empty")
	}
	if err := acquireRuntime(s.LibraryPath); err != nil {
		return err
	}
	size := int64(s.InputSize)
	sess, err := newONNXSession(s.ModelPath, s.InputName, s.OutputName,
		ort.NewShape(1, size, size, 3),
		ort.NewShape(1, size, size, 1))
	if err != nil {
		releaseRuntime()
		return err
	}
	s.session = sess
	return nil
}

func (s *ONNXSegmenter) teardown() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Close()
	s.session = nil
	if rerr := releaseRuntime(); err == nil {
		err = rerr
	}
	return err
}

func (s *ONNXSegmenter) Segment(ctx context.Context, frame image.Image) (*image.Gray, error) {
	_, release, err := s.lc.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if frame == nil || frame.Bounds().Empty() {
		return nil, Unavailable("segmentation", errors.New("empty frame"))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := s.InputSize
	input := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.BiLinear.Scale(input, input.Bounds(), frame, frame.Bounds(), xdraw.Src, nil)

	s.run.Lock()
	fillHWC(s.session.input.GetData(), input)
	if err := s.session.session.Run(); err != nil {
		s.run.Unlock()
		return nil, Unavailable("segmentation", errors.Wrap(err, "run segmentation model"))
	}
	mask := probabilitiesToGray(s.session.output.GetData(), size, size)
	s.run.Unlock()

	mask = segment.Clean(mask, minMaskRegion)
	if err := checkCoverage(mask); err != nil {
		return nil, Unavailable("segmentation", err)
	}
	b := frame.Bounds()
	return segment.Resize(mask, b.Dx(), b.Dy()), nil
}

func (s *ONNXSegmenter) Dispose() error {
	return s.lc.dispose(s.teardown)
}

func probabilitiesToGray(p []float32, w, h int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, w, h))
	for i := 0; i < w*h && i < len(p); i++ {
		v := p[i]
		switch {
		case v <= 0:
			out.Pix[i] = 0
		case v >= 1:
			out.Pix[i] = 255
		default:
			out.Pix[i] = uint8(v*255 + 0.5)
		}
	}
	return out
}
