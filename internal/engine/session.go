// Package engine schedules detection and compositing for one try-on session.
//
// A session owns its temporal state (smoothing history, tracker, last good
// recommendation) and borrows the detector and segmenter handles. Still
// sessions run once; continuous sessions tick at a fixed rate and never queue
// detections: a tick that finds a detection outstanding renders with the
// last known pose instead.
package engine

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/tryon/internal/asset"
	"github.com/ivlev/tryon/internal/effects"
	"github.com/ivlev/tryon/internal/inference"
	"github.com/ivlev/tryon/internal/measure"
	"github.com/ivlev/tryon/internal/placement"
	"github.com/ivlev/tryon/internal/pose"
	"github.com/ivlev/tryon/internal/renderer"
	"github.com/ivlev/tryon/internal/source"
)

var (
	ErrClosed = errors.New("session closed")
	// ErrSuperseded is returned by a still render whose source was switched
	// or invalidated while its detection was running.
	ErrSuperseded = errors.New("still render superseded")
)

type Options struct {
	Width, Height int
	FPS           int
	Category      placement.Category
	// HeightCm is the user's real height; zero disables centimetre sizing.
	HeightCm    float32
	Calibration measure.Calibration
	Adjustments renderer.Adjustments
	Filters     []effects.Spec
	OverlayWait time.Duration
	// DetectBudget is how long a tick waits for its own detection before
	// rendering with the last known pose. Zero means one frame interval.
	DetectBudget time.Duration
	SignalBuffer int
	Detector     inference.Config
}

func DefaultOptions() Options {
	return Options{
		Width:        720,
		Height:       1280,
		FPS:          30,
		Category:     placement.Top,
		Calibration:  measure.DefaultCalibration,
		Adjustments:  renderer.DefaultAdjustments(),
		OverlayWait:  renderer.DefaultOverlayWait,
		SignalBuffer: 16,
		Detector:     inference.DefaultConfig(),
	}
}

// Result is what one render produced.
type Result struct {
	Frame  *image.RGBA
	Report renderer.Report
	Time   float64

	PoseDetected   bool
	Subject        *pose.Subject
	Measurements   *measure.Measurements
	Recommendation *placement.Recommendation
	Sizes          map[measure.GarmentClass]string
	// Err is the unavailable-input failure behind a degraded render.
	Err error
}

// Sink receives rendered frames of a continuous session.
type Sink interface {
	WriteFrame(img image.Image) error
}

// Session is one try-on session.
type Session struct {
	ID string

	opts      Options
	log       zerolog.Logger
	detector  inference.Detector
	segmenter inference.Segmenter
	pipeline  *renderer.Pipeline
	stack     effects.Stack

	baseCtx  context.Context
	shutdown context.CancelFunc

	mu          sync.Mutex
	smoother    *pose.Smoother
	tracker     *pose.Tracker
	overlay     *asset.Future
	tint        *color.RGBA
	background  image.Image
	src         source.Source
	state       poseState
	epochCtx    context.Context
	epochCancel context.CancelFunc
	fatal       error
	closed      bool

	epoch atomic.Uint64
	// slot holds one token while a detection is outstanding.
	slot chan struct{}
	wg   sync.WaitGroup

	signals chan Signal
	seq     atomic.Uint64
	stats   counters
}

// poseState is the last applied observation.
type poseState struct {
	detected bool
	subject  *pose.Subject
	rec      *placement.Recommendation
	meas     *measure.Measurements
	mask     *image.Gray
	err      error
}

// New creates a session around borrowed handles. segmenter may be nil when
// no background pass is configured.
func New(opts Options, detector inference.Detector, segmenter inference.Segmenter, logger zerolog.Logger) (*Session, error) {
	if detector == nil {
		return nil, errors.New("session needs a detector")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errors.Errorf("invalid output size %dx%d", opts.Width, opts.Height)
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.Calibration == (measure.Calibration{}) {
		opts.Calibration = measure.DefaultCalibration
	}
	if err := opts.Detector.Validate(); err != nil {
		return nil, err
	}
	stack, err := effects.Resolve(opts.Filters)
	if err != nil {
		return nil, err
	}
	if stack.NeedsMask() && segmenter == nil {
		return nil, errors.New("background filters need a segmenter")
	}

	id := uuid.NewString()
	log := logger.With().Str("component", "session").Str("session", id).Logger()

	p := renderer.New(opts.Width, opts.Height, logger)
	if opts.OverlayWait > 0 {
		p.OverlayWait = opts.OverlayWait
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        id,
		opts:      opts,
		log:       log,
		detector:  detector,
		segmenter: segmenter,
		pipeline:  p,
		stack:     stack,
		baseCtx:   ctx,
		shutdown:  cancel,
		smoother:  pose.NewSmoother(opts.Detector.Smoother()),
		tracker:   pose.NewTracker(),
		signals:   make(chan Signal, max(opts.SignalBuffer, 1)),
		slot:      make(chan struct{}, 1),
	}
	s.epochCtx, s.epochCancel = context.WithCancel(ctx)
	log.Info().
		Str("category", string(opts.Category)).
		Strs("filters", stack.IDs()).
		Int("width", opts.Width).
		Int("height", opts.Height).
		Msg("session created")
	s.checkCategory(opts.Category)
	return s, nil
}

// SetAsset starts decoding the garment image. A variant colour must parse.
func (s *Session) SetAsset(ctx context.Context, a asset.Asset) error {
	var tint *color.RGBA
	if a.Variant != nil && a.Variant.Color != "" {
		c, ok := effects.ParseColor(a.Variant.Color)
		if !ok {
			return errors.Errorf("unknown variant color %q", a.Variant.Color)
		}
		tint = &c
	}
	fut := asset.Load(ctx, a)
	s.mu.Lock()
	s.overlay, s.tint = fut, tint
	if a.Category != "" {
		s.opts.Category = a.Category
	}
	s.mu.Unlock()
	s.checkCategory(a.Category)
	return nil
}

func (s *Session) checkCategory(c placement.Category) {
	if c != "" && !placement.Known(c) {
		s.log.Warn().Str("category", string(c)).Msg("no placement table for category, using fallback placement weights")
	}
}

// SetBackground sets the replacement image for background passes.
func (s *Session) SetBackground(img image.Image) {
	s.mu.Lock()
	s.background = img
	s.mu.Unlock()
}

// Signals delivers one observational signal per render. Signals are dropped
// when the consumer falls behind.
func (s *Session) Signals() <-chan Signal { return s.signals }

// RunStill renders one frame from src with a window of one: no history.
func (s *Session) RunStill(ctx context.Context, src source.Source) (Result, error) {
	if err := s.check(); err != nil {
		return Result{}, err
	}
	frame, err := src.Frame(ctx)
	if err != nil {
		return Result{}, inference.Unavailable("source", err)
	}

	s.invalidate()
	cfg := s.opts.Detector.Smoother()
	cfg.WindowSize = pose.DefaultStillWindow
	still := pose.NewSmoother(cfg)

	img := cloneFrame(frame)
	select {
	case s.slot <- struct{}{}:
	case <-s.baseCtx.Done():
		return Result{}, ErrClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	dctx, cancel, epoch, err := s.begin()
	if err != nil {
		<-s.slot
		return Result{}, err
	}
	stop := context.AfterFunc(ctx, cancel)
	s.stats.detections.Add(1)
	obs := s.observe(dctx, img)
	stop()
	cancel()
	err = s.apply(obs, epoch, img.Bounds(), still)
	s.wg.Done()
	<-s.slot
	if err != nil {
		return Result{}, err
	}

	if err := s.check(); err != nil {
		return Result{}, err
	}
	if epoch != s.epoch.Load() {
		return Result{}, ErrSuperseded
	}
	return s.compose(ctx, img, 0)
}

// Tick processes one frame of a continuous session. It starts a detection
// unless one is outstanding, waits for it at most DetectBudget and renders.
func (s *Session) Tick(ctx context.Context, frame image.Image) (Result, error) {
	if err := s.check(); err != nil {
		return Result{}, err
	}
	if frame == nil || frame.Bounds().Empty() {
		return Result{}, inference.Unavailable("source", errors.New("empty frame"))
	}
	n := s.stats.ticks.Add(1) - 1
	img := cloneFrame(frame)

	select {
	case s.slot <- struct{}{}:
		done, err := s.startDetection(img)
		if err != nil {
			return Result{}, err
		}
		budget := s.opts.DetectBudget
		if budget <= 0 {
			budget = time.Second / time.Duration(s.opts.FPS)
		}
		timer := time.NewTimer(budget)
		select {
		case <-done:
		case <-timer.C:
		case <-ctx.Done():
		}
		timer.Stop()
	default:
		s.stats.dropped.Add(1)
	}

	if err := s.check(); err != nil {
		return Result{}, err
	}
	return s.compose(ctx, img, float64(n)/float64(s.opts.FPS))
}

// begin registers a detection against the current epoch. The returned
// context ends when the epoch does.
func (s *Session) begin() (context.Context, context.CancelFunc, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, 0, ErrClosed
	}
	ctx, cancel := context.WithCancel(s.epochCtx)
	s.wg.Add(1)
	return ctx, cancel, s.epoch.Load(), nil
}

// startDetection runs a detection in the background; the caller holds the
// slot token and the goroutine gives it back.
func (s *Session) startDetection(img *image.RGBA) (<-chan struct{}, error) {
	ctx, cancel, epoch, err := s.begin()
	if err != nil {
		<-s.slot
		return nil, err
	}

	done := make(chan struct{})
	s.stats.detections.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		defer func() { <-s.slot }()
		defer cancel()

		s.apply(s.observe(ctx, img), epoch, img.Bounds(), s.smoother)
	}()
	return done, nil
}

// observation is the raw output of one detect+segment round.
type observation struct {
	subjects  []pose.Subject
	mask      *image.Gray
	detectErr error
	segErr    error
}

func (s *Session) observe(ctx context.Context, img *image.RGBA) observation {
	var obs observation
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		obs.subjects, obs.detectErr = s.detector.Detect(gctx, img)
		return nil
	})
	if s.stack.NeedsMask() {
		g.Go(func() error {
			obs.mask, obs.segErr = s.segmenter.Segment(gctx, img)
			return nil
		})
	}
	g.Wait()
	return obs
}

// apply folds an observation into the session state unless the epoch moved
// on while it was in flight. Only lifecycle violations are returned.
func (s *Session) apply(obs observation, epoch uint64, frame image.Rectangle, smoother *pose.Smoother) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch.Load() {
		s.stats.stale.Add(1)
		s.log.Debug().Uint64("epoch", epoch).Msg("discarding stale detection")
		return nil
	}

	for _, err := range []error{obs.detectErr, obs.segErr} {
		if inference.IsFatal(err) {
			if s.fatal == nil {
				s.fatal = err
				s.log.Error().Err(err).Msg("inference handle used after dispose")
			}
			return err
		}
	}

	if obs.segErr != nil {
		s.stats.unavailable.Add(1)
		s.log.Warn().Err(obs.segErr).Msg("segmentation unavailable")
		obs.mask = nil
	}
	s.state.mask = obs.mask

	if obs.detectErr != nil {
		if errors.Is(obs.detectErr, context.Canceled) {
			return nil
		}
		s.stats.unavailable.Add(1)
		s.log.Warn().Err(obs.detectErr).Msg("pose unavailable")
		s.state = poseState{mask: s.state.mask, err: inference.Unavailable("pose", obs.detectErr)}
		return nil
	}
	s.state.err = nil

	tracked := s.tracker.Assign(obs.subjects)
	smoothed := smoother.Smooth(tracked)
	main, ok := pose.SelectMain(smoothed)
	if !ok {
		s.state.detected, s.state.subject, s.state.rec, s.state.meas = false, nil, nil, nil
		return nil
	}
	s.state.detected = true
	s.state.subject = &main

	fit := renderer.ComputeFit(frame.Dx(), frame.Dy(), s.opts.Width, s.opts.Height)
	if rec, ok := placement.Recommend(fit.Subject(main), s.opts.Category, s.opts.Width, s.opts.Height); ok {
		if !rec.HasRotation && s.state.rec != nil && s.state.rec.HasRotation {
			rec.Rotation, rec.HasRotation = s.state.rec.Rotation, true
		}
		s.state.rec = &rec
	}
	if m, ok := s.opts.Calibration.Estimate(main, s.opts.HeightCm); ok {
		s.state.meas = &m
	}
	return nil
}

func (s *Session) compose(ctx context.Context, img *image.RGBA, t float64) (Result, error) {
	s.mu.Lock()
	st := s.state
	in := renderer.Input{
		Base:       img,
		Stack:      s.stack,
		Background: s.background,
		Time:       t,
	}
	if st.mask != nil && st.mask.Bounds().Eq(img.Bounds()) {
		in.Mask = st.mask
	}
	if st.rec != nil && st.err == nil && s.overlay != nil {
		in.Overlay = &renderer.Overlay{
			Image:     s.overlay,
			Transform: renderer.TransformFor(*st.rec, s.opts.Adjustments),
			Tint:      s.tint,
		}
	}
	category := s.opts.Category
	s.mu.Unlock()

	out, rep, err := s.pipeline.Render(ctx, in)
	if err != nil {
		return Result{}, errors.Wrap(err, "render")
	}
	s.stats.rendered.Add(1)
	s.stats.stageFailures.Add(int64(len(rep.Skipped)))

	res := Result{
		Frame:          out,
		Report:         rep,
		Time:           t,
		PoseDetected:   st.detected,
		Subject:        st.subject,
		Measurements:   st.meas,
		Recommendation: st.rec,
		Err:            st.err,
	}
	if st.meas != nil {
		res.Sizes = s.opts.Calibration.Sizes(*st.meas)
	}
	s.emit(res, category)
	return res, nil
}

// SwitchSource releases the current source and then makes src current; the
// session owns src from then on. Detections still in flight are cancelled
// and their results discarded.
func (s *Session) SwitchSource(src source.Source) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	old := s.src
	s.src = nil
	s.mu.Unlock()

	s.invalidate()
	var closeErr error
	if old != nil && old != src {
		if err := old.Close(); err != nil {
			closeErr = errors.Wrap(err, "close previous source")
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		src.Close()
		return ErrClosed
	}
	s.src = src
	s.mu.Unlock()
	return closeErr
}

// invalidate starts a new epoch: in-flight work is cancelled and the
// temporal state is cleared.
func (s *Session) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch.Add(1)
	s.epochCancel()
	s.epochCtx, s.epochCancel = context.WithCancel(s.baseCtx)
	s.smoother.Reset()
	s.tracker.Reset()
	s.state = poseState{}
}

// Run ticks src at the session frame rate until ctx ends, the session is
// closed, a fatal error occurs or frames renders were produced (zero means no
// limit). A still source is rendered once. Closing the session from another
// goroutine ends Run with ErrClosed.
func (s *Session) Run(ctx context.Context, src source.Source, sink Sink, frames int) error {
	if err := s.SwitchSource(src); err != nil {
		return err
	}
	if !src.Live() {
		res, err := s.RunStill(ctx, src)
		if err != nil {
			return err
		}
		if sink != nil {
			return sink.WriteFrame(res.Frame)
		}
		return nil
	}

	ticker := time.NewTicker(time.Second / time.Duration(s.opts.FPS))
	defer ticker.Stop()

	rendered := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.baseCtx.Done():
			return ErrClosed
		case <-ticker.C:
		}

		s.mu.Lock()
		cur, closed := s.src, s.closed
		s.mu.Unlock()
		if closed {
			return ErrClosed
		}
		if cur == nil {
			// a switch is releasing the previous source
			continue
		}

		frame, err := cur.Frame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.stats.unavailable.Add(1)
			s.log.Warn().Err(err).Msg("source frame unavailable")
			continue
		}
		res, err := s.Tick(ctx, frame)
		if err != nil {
			if inference.IsFatal(err) || errors.Is(err, ErrClosed) {
				return err
			}
			s.log.Warn().Err(err).Msg("tick failed")
			continue
		}
		if sink != nil {
			if err := sink.WriteFrame(res.Frame); err != nil {
				return errors.Wrap(err, "write frame")
			}
		}
		rendered++
		if frames > 0 && rendered >= frames {
			return nil
		}
	}
}

// Close cancels outstanding work, releases the current source and closes the
// signal channel. The detector and segmenter are not disposed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	src := s.src
	s.src = nil
	s.mu.Unlock()

	s.invalidate()
	s.shutdown()
	s.wg.Wait()

	s.mu.Lock()
	close(s.signals)
	s.mu.Unlock()

	s.log.Info().Interface("stats", s.Stats()).Msg("session closed")
	if src != nil {
		return src.Close()
	}
	return nil
}

func (s *Session) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.fatal
}

func cloneFrame(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
