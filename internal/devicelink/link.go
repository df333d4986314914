// Package devicelink drives the probe's serial protocol: the wake / computer
// mode handshake and sample requests.
package devicelink

import (
	"github.com/google/uuid"

	"github.com/banshee-data/ctdlog/internal/monitoring"
)

// Wire protocol command bytes.
const (
	CmdWake         byte = 0x00
	CmdComputerMode byte = 0x0C
	CmdSampleArm    byte = 0x02
	CmdSampleRead   byte = 0x55
)

// maxResponse caps a single frame read. Anything that long is garbage and
// is rejected by the frame decoder anyway.
const maxResponse = 64

// State is the session's position in the handshake.
type State int

const (
	// Closed: the device has not been woken (or the transport is released).
	Closed State = iota
	Awake
	ComputerMode
	Ready
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Awake:
		return "awake"
	case ComputerMode:
		return "computer-mode"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Session owns one open transport to a probe. It is not safe for concurrent
// use; the pipeline drives it from a single goroutine.
type Session struct {
	ID   string
	Path string

	port  Porter
	opts  PortOptions
	state State
}

// Open opens the transport and returns a session in state Closed.
func Open(path string, opts PortOptions, opener Opener) (*Session, error) {
	norm, err := opts.Normalise()
	if err != nil {
		return nil, &LinkError{Op: "open", Path: path, Err: err}
	}

	port, err := opener(path, norm)
	if err != nil {
		return nil, &LinkError{Op: "open", Path: path, Err: err}
	}
	if err := port.SetReadTimeout(norm.ReadTimeout()); err != nil {
		_ = port.Close()
		return nil, &LinkError{Op: "open", Path: path, Err: err}
	}

	s := &Session{
		ID:    uuid.NewString(),
		Path:  path,
		port:  port,
		opts:  norm,
		state: Closed,
	}
	monitoring.Logf("ctd session %s: opened %s at %d baud", s.ID, path, norm.BaudRate)
	return s, nil
}

// State returns the current handshake state.
func (s *Session) State() State { return s.state }

// Options returns the normalised port options the session was opened with.
func (s *Session) Options() PortOptions { return s.opts }

// Wake sends the wake byte and waits for one response line. The response is
// not checked: the device answers with a banner whose content varies, and
// the handshake proceeds either way.
func (s *Session) Wake() error {
	if err := s.expect("wake", Closed); err != nil {
		return err
	}
	if err := s.write("wake", CmdWake); err != nil {
		return err
	}
	line, err := s.readLine("wake")
	if err != nil {
		return err
	}
	monitoring.Logf("ctd session %s: wake response %q", s.ID, line)
	s.state = Awake
	return nil
}

// SetComputerMode selects computer (binary) mode. The response line is read
// and discarded.
func (s *Session) SetComputerMode() error {
	if err := s.expect("computer-mode", Awake); err != nil {
		return err
	}
	if err := s.write("computer-mode", CmdComputerMode); err != nil {
		return err
	}
	if _, err := s.readLine("computer-mode"); err != nil {
		return err
	}
	s.state = ComputerMode
	return nil
}

// Handshake wakes the device and selects computer mode.
func (s *Session) Handshake() error {
	if err := s.Wake(); err != nil {
		return err
	}
	return s.SetComputerMode()
}

// RequestSample arms the device, requests a reading and returns the raw
// response. The response is binary and not line terminated; it is whatever
// arrives before the read timeout, so it may be short or empty when the
// device does not answer. Callers decide what a usable frame is.
func (s *Session) RequestSample() ([]byte, error) {
	if err := s.expect("sample", ComputerMode, Ready); err != nil {
		return nil, err
	}
	s.state = Ready

	if err := s.write("sample", CmdSampleArm); err != nil {
		return nil, err
	}
	if _, err := s.readLine("sample"); err != nil {
		return nil, err
	}
	if err := s.write("sample", CmdSampleRead); err != nil {
		return nil, err
	}
	return s.readFrame("sample")
}

// Close releases the transport. It may be called in any state and more
// than once.
func (s *Session) Close() error {
	if s.port == nil {
		return nil
	}
	port := s.port
	s.port = nil
	s.state = Closed
	if err := port.Close(); err != nil {
		return &LinkError{Op: "close", Path: s.Path, Err: err}
	}
	monitoring.Logf("ctd session %s: closed %s", s.ID, s.Path)
	return nil
}

func (s *Session) expect(op string, states ...State) error {
	if s.port == nil {
		return ErrClosed
	}
	for _, st := range states {
		if s.state == st {
			return nil
		}
	}
	return &StateError{Op: op, State: s.state}
}

func (s *Session) write(op string, cmd ...byte) error {
	n, err := s.port.Write(cmd)
	if err != nil {
		return &LinkError{Op: op, Path: s.Path, Err: err}
	}
	if n != len(cmd) {
		return &LinkError{Op: op, Path: s.Path, Err: ErrShortWrite}
	}
	return nil
}

// readLine reads up to and including '\n', or until a read times out.
func (s *Session) readLine(op string) ([]byte, error) {
	var line []byte
	b := make([]byte, 1)
	for {
		n, err := s.port.Read(b)
		if err != nil {
			return line, &LinkError{Op: op, Path: s.Path, Err: err}
		}
		if n == 0 {
			return line, nil
		}
		line = append(line, b[0])
		if b[0] == '\n' {
			return line, nil
		}
	}
}

// readFrame reads until a read times out or maxResponse bytes have arrived.
func (s *Session) readFrame(op string) ([]byte, error) {
	frame := make([]byte, 0, 8)
	buf := make([]byte, maxResponse)
	for len(frame) < maxResponse {
		n, err := s.port.Read(buf[:maxResponse-len(frame)])
		if err != nil {
			return frame, &LinkError{Op: op, Path: s.Path, Err: err}
		}
		if n == 0 {
			break
		}
		frame = append(frame, buf[:n]...)
	}
	return frame, nil
}
