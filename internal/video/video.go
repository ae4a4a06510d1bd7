// Package video records rendered frames to a file through an ffmpeg
// subprocess fed with raw RGBA on stdin.
package video

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type Options struct {
	Path    string
	Width   int
	Height  int
	FPS     int
	Encoder string
	Quality int
}

// Recorder streams frames of a fixed size into ffmpeg.
type Recorder struct {
	opts  Options
	log   zerolog.Logger
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu     sync.Mutex
	frames int
	closed bool
}

func NewRecorder(ctx context.Context, opts Options, logger zerolog.Logger) (*Recorder, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errors.Errorf("invalid recording size %dx%d", opts.Width, opts.Height)
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.Encoder == "" {
		opts.Encoder = "libx264"
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", buildFFmpegArgs(opts)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdin pipe error")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "ffmpeg start error")
	}

	r := &Recorder{
		opts:  opts,
		log:   logger.With().Str("component", "recorder").Str("path", opts.Path).Logger(),
		cmd:   cmd,
		stdin: stdin,
	}
	r.log.Info().Str("encoder", opts.Encoder).Int("fps", opts.FPS).Msg("recording started")
	return r, nil
}

// WriteFrame appends one frame; its size must match the recording.
func (r *Recorder) WriteFrame(img image.Image) error {
	b := img.Bounds()
	if b.Dx() != r.opts.Width || b.Dy() != r.opts.Height {
		return errors.Errorf("frame %dx%d does not match recording %dx%d", b.Dx(), b.Dy(), r.opts.Width, r.opts.Height)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("recorder closed")
	}
	if err := writeRawRGBA(r.stdin, img); err != nil {
		return errors.Wrap(err, "write raw error")
	}
	r.frames++
	return nil
}

// Frames returns how many frames were written.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close flushes stdin and waits for ffmpeg to finish the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	frames := r.frames
	r.mu.Unlock()

	r.stdin.Close()
	if err := r.cmd.Wait(); err != nil {
		return errors.Wrap(err, "ffmpeg wait error")
	}
	r.log.Info().Int("frames", frames).Msg("recording finished")
	return nil
}

func buildFFmpegArgs(opts Options) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-framerate", fmt.Sprintf("%d", opts.FPS),
		"-i", "-",
		"-pix_fmt", "yuv420p",
		"-c:v", opts.Encoder,
	}

	switch opts.Encoder {
	case "h264_videotoolbox":
		args = append(args, "-b:v", fmt.Sprintf("%dk", opts.Quality*100))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", opts.Quality))
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", opts.Quality), "-preset", "veryfast")
	}

	return append(args, opts.Path)
}

func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}
