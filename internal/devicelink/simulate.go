package devicelink

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/ctdlog/internal/ctd"
	"github.com/banshee-data/ctdlog/internal/timeutil"
)

// Simulator answers the probe's wire protocol in process. Sample frames come
// from Next; every DropEvery-th frame (when non-zero) is cut short to
// exercise the dropped-sample path.
type Simulator struct {
	// Next produces the counts for each sample request.
	Next func() ctd.RawSample
	// DropEvery truncates every n-th frame to three bytes.
	DropEvery int
	// Clock is used to wait out the read timeout once the reply is drained.
	Clock timeutil.Clock

	mu      sync.Mutex
	pending bytes.Buffer
	timeout time.Duration
	samples int
	closed  bool
}

// NewSimulator returns a Simulator backed by the real clock.
func NewSimulator(next func() ctd.RawSample) *Simulator {
	return &Simulator{Next: next, Clock: timeutil.RealClock{}}
}

// Opener returns an Opener that always yields this simulator.
func (s *Simulator) Opener() Opener {
	return func(string, PortOptions) (Porter, error) { return s, nil }
}

// Write interprets command bytes.
func (s *Simulator) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.New("simulator closed")
	}
	for _, b := range p {
		switch b {
		case CmdWake:
			s.pending.WriteString("STAR-ODDI CTD\r\n")
		case CmdComputerMode:
			s.pending.WriteString("CM\r\n")
		case CmdSampleArm:
			s.pending.WriteString("\r\n")
		case CmdSampleRead:
			s.samples++
			frame := ctd.Encode(s.Next())
			if s.DropEvery > 0 && s.samples%s.DropEvery == 0 {
				frame = frame[:3]
			}
			s.pending.Write(frame)
		}
	}
	return len(p), nil
}

// Read returns pending reply bytes, or waits out the read timeout and
// reports it when there are none.
func (s *Simulator) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, errors.New("simulator closed")
	}
	if s.pending.Len() > 0 {
		defer s.mu.Unlock()
		return s.pending.Read(p)
	}
	timeout := s.timeout
	s.mu.Unlock()

	if s.Clock != nil {
		s.Clock.Sleep(timeout)
	}
	return 0, nil
}

// SetReadTimeout records the timeout Read waits out.
func (s *Simulator) SetReadTimeout(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = timeout
	return nil
}

// Close stops the simulator.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Samples returns how many sample requests have been answered.
func (s *Simulator) Samples() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}
