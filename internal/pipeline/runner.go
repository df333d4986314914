// Package pipeline drives the sampling loop: request a frame from the probe,
// decode it, calibrate it and hand the result to a sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/ctdlog/internal/ctd"
	"github.com/banshee-data/ctdlog/internal/devicelink"
	"github.com/banshee-data/ctdlog/internal/monitoring"
	"github.com/banshee-data/ctdlog/internal/sink"
	"github.com/banshee-data/ctdlog/internal/timeutil"
)

// SampleSource is the part of a device session the runner needs.
// *devicelink.Session satisfies it.
type SampleSource interface {
	RequestSample() ([]byte, error)
	Close() error
}

// Converter turns raw counts into physical units. *calibration.Engine
// satisfies it.
type Converter interface {
	Convert(ctd.RawSample) ctd.CalibratedSample
}

// Stats counts what happened to each sampling cycle.
type Stats struct {
	Cycles       int `json:"cycles"`
	Emitted      int `json:"emitted"`
	DroppedLink  int `json:"dropped_link"`
	DroppedFrame int `json:"dropped_frame"`
	DroppedSink  int `json:"dropped_sink"`
}

// Dropped is the total number of cycles that produced no sample.
func (s Stats) Dropped() int {
	return s.DroppedLink + s.DroppedFrame + s.DroppedSink
}

func (s Stats) String() string {
	return fmt.Sprintf("%d cycles, %d emitted, %d dropped (link %d, frame %d, sink %d)",
		s.Cycles, s.Emitted, s.Dropped(), s.DroppedLink, s.DroppedFrame, s.DroppedSink)
}

// Runner owns the sampling loop for one session. The session must have
// completed its handshake before Run is called.
type Runner struct {
	Link   SampleSource
	Engine Converter
	Sink   sink.Sink
	Clock  timeutil.Clock

	// MaxSamples stops the loop after that many emitted samples; 0 runs
	// until the context is cancelled.
	MaxSamples int
	// Interval is the minimum spacing between sample requests; 0 requests
	// back to back.
	Interval time.Duration

	mu    sync.Mutex
	stats Stats
}

// Run samples until ctx is cancelled, MaxSamples is reached or the link can
// no longer be used. A failed cycle is logged and counted, nothing is
// emitted for it and the loop carries on; no earlier value is reused. The
// link is closed on every return path. Cancellation is not an error.
func (r *Runner) Run(ctx context.Context) error {
	if r.Link == nil || r.Engine == nil || r.Sink == nil {
		return errors.New("pipeline: link, engine and sink are required")
	}
	clock := r.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	defer func() {
		if err := r.Link.Close(); err != nil {
			monitoring.Logf("pipeline: close failed: %v", err)
		}
		monitoring.Logf("pipeline stopped: %s", r.Stats())
	}()

	var last time.Time
	for {
		if ctx.Err() != nil {
			return nil
		}
		if r.MaxSamples > 0 && r.Stats().Emitted >= r.MaxSamples {
			return nil
		}
		if r.Interval > 0 && !last.IsZero() {
			if wait := r.Interval - clock.Since(last); wait > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-clock.After(wait):
				}
				if ctx.Err() != nil {
					return nil
				}
			}
		}
		last = clock.Now()

		if err := r.cycle(clock); err != nil {
			return err
		}
	}
}

// cycle runs one request. It returns an error only when the link is unusable.
func (r *Runner) cycle(clock timeutil.Clock) error {
	r.count(func(s *Stats) { s.Cycles++ })

	frame, err := r.Link.RequestSample()
	if err != nil {
		var stateErr *devicelink.StateError
		if errors.Is(err, devicelink.ErrClosed) || errors.As(err, &stateErr) {
			return fmt.Errorf("pipeline: %w", err)
		}
		monitoring.Logf("pipeline: sample request failed: %v", err)
		r.count(func(s *Stats) { s.DroppedLink++ })
		return nil
	}
	monitoring.Debugf("pipeline: frame % x", frame)

	raw, err := ctd.Decode(frame)
	if err != nil {
		monitoring.Logf("pipeline: dropped sample: %v", err)
		r.count(func(s *Stats) { s.DroppedFrame++ })
		return nil
	}

	sample := r.Engine.Convert(raw)
	sample.Time = clock.Now().UTC()

	if err := r.Sink.Emit(sample); err != nil {
		monitoring.Logf("pipeline: sink failed: %v", err)
		r.count(func(s *Stats) { s.DroppedSink++ })
		return nil
	}
	r.count(func(s *Stats) { s.Emitted++ })
	return nil
}

func (r *Runner) count(f func(*Stats)) {
	r.mu.Lock()
	f(&r.stats)
	r.mu.Unlock()
}

// Stats returns a snapshot of the cycle counters. It is safe to call while
// Run is in progress.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
