package inference

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	xdraw "golang.org/x/image/draw"
)

// The onnxruntime environment is process-wide; handles share it and the last
// one to be disposed tears it down.
var ortEnv struct {
	sync.Mutex
	refs int
}

func acquireRuntime(libraryPath string) error {
	ortEnv.Lock()
	defer ortEnv.Unlock()
	if ortEnv.refs == 0 && !ort.IsInitialized() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return errors.Wrap(err, "initialise onnxruntime")
		}
	}
	ortEnv.refs++
	return nil
}

func releaseRuntime() error {
	ortEnv.Lock()
	defer ortEnv.Unlock()
	if ortEnv.refs == 0 {
		return nil
	}
	ortEnv.refs--
	if ortEnv.refs == 0 {
		return errors.Wrap(ort.DestroyEnvironment(), "destroy onnxruntime")
	}
	return nil
}

// onnxSession owns one advanced session and its bound tensors.
type onnxSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func newONNXSession(modelPath string, inputName, outputName string, inShape, outShape ort.Shape) (*onnxSession, error) {
	input, err := ort.NewEmptyTensor[float32](inShape)
	if err != nil {
		return nil, errors.Wrap(err, "create input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "create output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "create session options")
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(err, "load model %s", modelPath)
	}
	return &onnxSession{session: session, input: input, output: output}, nil
}

func (s *onnxSession) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if s.session != nil {
		keep(s.session.Destroy())
		s.session = nil
	}
	if s.input != nil {
		keep(s.input.Destroy())
		s.input = nil
	}
	if s.output != nil {
		keep(s.output.Destroy())
		s.output = nil
	}
	return first
}

// letterGeom maps model input coordinates back to the frame.
type letterGeom struct {
	scale      float32
	padX, padY float32
}

func (g letterGeom) toFrame(x, y float32) (float32, float32) {
	return (x - g.padX) / g.scale, (y - g.padY) / g.scale
}

// letterboxSquare fits frame into a size x size RGBA padded with YOLO grey.
func letterboxSquare(frame image.Image, size int) (*image.RGBA, letterGeom) {
	b := frame.Bounds()
	scale := min(float32(size)/float32(b.Dx()), float32(size)/float32(b.Dy()))
	w, h := int(float32(b.Dx())*scale+0.5), int(float32(b.Dy())*scale+0.5)
	padX, padY := (size-w)/2, (size-h)/2

	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.RGBA{114, 114, 114, 255}), image.Point{}, draw.Src)
	xdraw.BiLinear.Scale(out, image.Rect(padX, padY, padX+w, padY+h), frame, b, xdraw.Src, nil)
	return out, letterGeom{scale: scale, padX: float32(padX), padY: float32(padY)}
}

// fillCHW writes img into dst as planar RGB scaled to [0,1].
func fillCHW(dst []float32, img *image.RGBA) {
	plane := img.Rect.Dx() * img.Rect.Dy()
	for i := 0; i < plane; i++ {
		o := i * 4
		dst[i] = float32(img.Pix[o]) / 255
		dst[plane+i] = float32(img.Pix[o+1]) / 255
		dst[2*plane+i] = float32(img.Pix[o+2]) / 255
	}
}

// fillHWC writes img into dst as interleaved RGB scaled to [0,1].
func fillHWC(dst []float32, img *image.RGBA) {
	plane := img.Rect.Dx() * img.Rect.Dy()
	for i := 0; i < plane; i++ {
		o := i * 4
		dst[i*3] = float32(img.Pix[o]) / 255
		dst[i*3+1] = float32(img.Pix[o+1]) / 255
		dst[i*3+2] = float32(img.Pix[o+2]) / 255
	}
}
