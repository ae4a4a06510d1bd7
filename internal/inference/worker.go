package inference

import (
	"bufio"
	"context"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ivlev/tryon/internal/pose"
)

const DefaultWorkerWriteTimeout = 2 * time.Second

type workerRequest struct {
	Seq              uint64  `msgpack:"seq"`
	Width            int     `msgpack:"width"`
	Height           int     `msgpack:"height"`
	Pixels           []byte  `msgpack:"rgba"`
	MinPoseScore     float32 `msgpack:"min_pose_score"`
	MinKeypointScore float32 `msgpack:"min_keypoint_score"`
	MaxPoses         int     `msgpack:"max_poses"`
}

type workerKeypoint struct {
	Name  string  `msgpack:"name"`
	X     float32 `msgpack:"x"`
	Y     float32 `msgpack:"y"`
	Score float32 `msgpack:"score"`
}

type workerSubject struct {
	ID        uint32           `msgpack:"id"`
	Score     float32          `msgpack:"score"`
	Box       []float32        `msgpack:"box,omitempty"`
	Keypoints []workerKeypoint `msgpack:"keypoints"`
}

type workerResponse struct {
	Seq      uint64          `msgpack:"seq"`
	Subjects []workerSubject `msgpack:"subjects"`
	Error    string          `msgpack:"error,omitempty"`
}

// WorkerDetector delegates detection to an external process speaking
// length-prefixed msgpack over stdin/stdout.
type WorkerDetector struct {
	Command      []string
	WriteTimeout time.Duration

	log zerolog.Logger
	lc  lifecycle

	// dial replaces process startup in tests.
	dial func() (io.Reader, io.WriteCloser, func() error, error)

	run     sync.Mutex
	stdin   io.WriteCloser
	results chan workerResponse
	done    chan struct{}
	stop    func() error
	seq     atomic.Uint64
	// pending holds a write that outlived its timeout.
	pending chan error
}

func NewWorkerDetector(command []string, logger zerolog.Logger) *WorkerDetector {
	w := &WorkerDetector{
		Command:      command,
		WriteTimeout: DefaultWorkerWriteTimeout,
		log:          logger.With().Str("component", "pose-worker").Logger(),
	}
	w.dial = w.spawn
	return w
}

// NewWorkerDetectorConn talks to an already connected worker.
func NewWorkerDetectorConn(r io.Reader, wc io.WriteCloser, logger zerolog.Logger) *WorkerDetector {
	w := NewWorkerDetector(nil, logger)
	w.dial = func() (io.Reader, io.WriteCloser, func() error, error) {
		return r, wc, wc.Close, nil
	}
	return w
}

func (w *WorkerDetector) Init(cfg Config) error {
	return w.lc.init(cfg, w.teardown, w.setup)
}

func (w *WorkerDetector) setup() error {
	r, wc, stop, err := w.dial()
	if err != nil {
		return err
	}
	w.stdin = wc
	w.stop = stop
	w.results = make(chan workerResponse, 1)
	w.done = make(chan struct{})
	go w.readResults(r, w.results, w.done)
	return nil
}

func (w *WorkerDetector) spawn() (io.Reader, io.WriteCloser, func() error, error) {
	if len(w.Command) == 0 {
		return nil, nil, nil, errors.New("worker command is empty")
	}
	cmd := exec.Command(w.Command[0], w.Command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "worker stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "worker stdout")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "worker stderr")
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, nil, errors.Wrapf(err, "start worker %s", w.Command[0])
	}
	w.log.Info().Int("pid", cmd.Process.Pid).Strs("command", w.Command).Msg("worker started")

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			w.log.Debug().Str("stderr", scanner.Text()).Msg("worker")
		}
	}()

	stop := func() error {
		stdin.Close()
		exited := make(chan error, 1)
		go func() { exited <- cmd.Wait() }()
		select {
		case err := <-exited:
			return err
		case <-time.After(2 * time.Second):
			w.log.Warn().Msg("worker did not exit, killing")
			if err := cmd.Process.Kill(); err != nil {
				return errors.Wrap(err, "kill worker")
			}
			<-exited
			return nil
		}
	}
	return stdout, stdin, stop, nil
}

func (w *WorkerDetector) readResults(r io.Reader, out chan workerResponse, done chan<- struct{}) {
	defer close(done)
	for {
		var resp workerResponse
		if err := ReadMessage(r, &resp); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				w.log.Error().Err(err).Msg("worker read failed")
			}
			return
		}
		// Keep only the newest response.
		select {
		case out <- resp:
		default:
			select {
			case <-out:
			default:
			}
			out <- resp
		}
	}
}

func (w *WorkerDetector) teardown() error {
	if w.stop == nil {
		return nil
	}
	err := w.stop()
	w.stop = nil
	<-w.done
	return err
}

func (w *WorkerDetector) Detect(ctx context.Context, frame image.Image) ([]pose.Subject, error) {
	cfg, release, err := w.lc.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if frame == nil || frame.Bounds().Empty() {
		return nil, Unavailable("pose", errors.New("empty frame"))
	}

	w.run.Lock()
	defer w.run.Unlock()

	b := frame.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), frame, b.Min, draw.Src)

	seq := w.seq.Add(1)
	req := workerRequest{
		Seq:              seq,
		Width:            b.Dx(),
		Height:           b.Dy(),
		Pixels:           rgba.Pix,
		MinPoseScore:     cfg.MinPoseScore,
		MinKeypointScore: cfg.MinKeypointScore,
		MaxPoses:         cfg.Limit(),
	}

	if w.pending != nil {
		select {
		case <-w.pending:
			w.pending = nil
		default:
			return nil, Unavailable("pose", errors.New("worker stalled on previous frame"))
		}
	}

	writeErr := make(chan error, 1)
	go func() { writeErr <- WriteMessage(w.stdin, req) }()
	select {
	case err := <-writeErr:
		if err != nil {
			return nil, Unavailable("pose", err)
		}
	case <-time.After(w.WriteTimeout):
		w.pending = writeErr
		return nil, Unavailable("pose", errors.Errorf("worker write timeout after %s", w.WriteTimeout))
	case <-ctx.Done():
		w.pending = writeErr
		return nil, ctx.Err()
	}

	for {
		select {
		case resp := <-w.results:
			if resp.Seq != seq {
				continue
			}
			if resp.Error != "" {
				return nil, Unavailable("pose", errors.New(resp.Error))
			}
			return subjectsFromWorker(resp.Subjects, cfg.Limit()), nil
		case <-w.done:
			return nil, Unavailable("pose", errors.New("worker exited"))
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (w *WorkerDetector) Dispose() error {
	return w.lc.dispose(w.teardown)
}

func subjectsFromWorker(in []workerSubject, limit int) []pose.Subject {
	out := make([]pose.Subject, 0, min(len(in), limit))
	for _, ws := range in {
		if len(out) >= limit {
			break
		}
		s := pose.Subject{ID: ws.ID, Score: ws.Score}
		for _, k := range ws.Keypoints {
			name, ok := pose.ParseLandmark(k.Name)
			if !ok {
				continue
			}
			s.Keypoints = append(s.Keypoints, pose.Keypoint{Name: name, X: k.X, Y: k.Y, Confidence: k.Score})
		}
		if len(ws.Box) == 4 {
			s.Box = &pose.Rect{X: ws.Box[0], Y: ws.Box[1], W: ws.Box[2], H: ws.Box[3]}
		}
		out = append(out, s)
	}
	return out
}
