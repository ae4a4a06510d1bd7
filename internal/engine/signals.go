package engine

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/ivlev/tryon/internal/inference"
	"github.com/ivlev/tryon/internal/measure"
	"github.com/ivlev/tryon/internal/placement"
	"github.com/ivlev/tryon/internal/system"
)

// Signal is UI feedback for one rendered frame. It plays no part in
// compositing.
type Signal struct {
	SessionID      string                    `msgpack:"session_id"`
	Seq            uint64                    `msgpack:"seq"`
	PoseDetected   bool                      `msgpack:"pose_detected"`
	Recommendation *placement.Recommendation `msgpack:"recommendation,omitempty"`
	Measurements   *measure.Measurements     `msgpack:"measurements,omitempty"`
	Size           string                    `msgpack:"size,omitempty"`
}

func (s *Session) emit(res Result, category placement.Category) {
	sig := Signal{
		SessionID:      s.ID,
		Seq:            s.seq.Add(1),
		PoseDetected:   res.PoseDetected,
		Recommendation: res.Recommendation,
		Measurements:   res.Measurements,
	}
	if class, ok := placement.GarmentClass(category); ok {
		sig.Size = res.Sizes[class]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.signals <- sig:
	default:
		s.stats.signalsDropped.Add(1)
	}
}

// SignalWriter streams signals as length-prefixed msgpack.
type SignalWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSignalWriter(w io.Writer) *SignalWriter {
	return &SignalWriter{w: w}
}

func (sw *SignalWriter) Write(sig Signal) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return inference.WriteMessage(sw.w, sig)
}

// ReadSignal reads one signal written by a SignalWriter.
func ReadSignal(r io.Reader) (Signal, error) {
	var sig Signal
	err := inference.ReadMessage(r, &sig)
	return sig, err
}

type counters struct {
	ticks          atomic.Int64
	detections     atomic.Int64
	dropped        atomic.Int64
	stale          atomic.Int64
	rendered       atomic.Int64
	stageFailures  atomic.Int64
	unavailable    atomic.Int64
	signalsDropped atomic.Int64
}

// Stats summarises a session so far.
type Stats struct {
	Ticks          int64        `json:"ticks"`
	Detections     int64        `json:"detections"`
	Dropped        int64        `json:"dropped"`
	Stale          int64        `json:"stale"`
	Rendered       int64        `json:"rendered"`
	StageFailures  int64        `json:"stage_failures"`
	Unavailable    int64        `json:"unavailable"`
	SignalsDropped int64        `json:"signals_dropped"`
	Usage          system.Usage `json:"usage"`
}

func (s *Session) Stats() Stats {
	st := Stats{
		Ticks:          s.stats.ticks.Load(),
		Detections:     s.stats.detections.Load(),
		Dropped:        s.stats.dropped.Load(),
		Stale:          s.stats.stale.Load(),
		Rendered:       s.stats.rendered.Load(),
		StageFailures:  s.stats.stageFailures.Load(),
		Unavailable:    s.stats.unavailable.Load(),
		SignalsDropped: s.stats.signalsDropped.Load(),
	}
	if u, err := system.CurrentUsage(); err == nil {
		st.Usage = u
	} else {
		s.log.Debug().Err(err).Msg("process usage unavailable")
	}
	return st
}
