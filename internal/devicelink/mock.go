package devicelink

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// TestablePort is a scripted Porter for tests. Writes are recorded, and each
// command byte written queues the next scripted reply for that byte into the
// read buffer. Reads drain the buffer and report a timeout (0, nil) once it
// is empty, as a serial port with a read timeout would.
type TestablePort struct {
	mu sync.Mutex

	ReadBuffer  *bytes.Buffer
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set.
	ReadError error
	// WriteError is returned by the next Write call if set.
	WriteError error
	// TimeoutError is returned by SetReadTimeout if set.
	TimeoutError error
	// CloseError is returned by Close if set.
	CloseError error

	Closed      bool
	CloseCalls  int
	ReadCalls   int
	WriteCalls  int
	ReadTimeout time.Duration

	replies map[byte][][]byte
}

// NewTestablePort creates an empty TestablePort.
func NewTestablePort() *TestablePort {
	return &TestablePort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
		replies:     make(map[byte][][]byte),
	}
}

// Reply queues responses for successive writes of cmd. A nil reply means the
// device stays silent for that write.
func (t *TestablePort) Reply(cmd byte, replies ...[]byte) *TestablePort {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies[cmd] = append(t.replies[cmd], replies...)
	return t
}

// Read drains queued reply bytes.
func (t *TestablePort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadCalls++
	if t.Closed {
		return 0, errors.New("serial port closed")
	}
	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}
	if t.ReadBuffer.Len() == 0 {
		return 0, nil
	}
	return t.ReadBuffer.Read(p)
}

// Write records p and queues the scripted reply for each byte.
func (t *TestablePort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++
	if t.Closed {
		return 0, errors.New("serial port closed")
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}

	n, _ := t.WriteBuffer.Write(p)
	for _, b := range p {
		queue := t.replies[b]
		if len(queue) == 0 {
			continue
		}
		t.ReadBuffer.Write(queue[0])
		t.replies[b] = queue[1:]
	}
	return n, nil
}

// Close marks the port as closed.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.CloseCalls++
	return t.CloseError
}

// SetReadTimeout records the timeout.
func (t *TestablePort) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.TimeoutError != nil {
		return t.TimeoutError
	}
	t.ReadTimeout = timeout
	return nil
}

// Written returns a copy of everything written to the port.
func (t *TestablePort) Written() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.WriteBuffer.Bytes()...)
}

// MockOpener records Open calls and hands out a fixed port.
type MockOpener struct {
	mu sync.Mutex

	Port  Porter
	Error error
	Calls []MockOpenCall
}

// MockOpenCall records the arguments of one Open.
type MockOpenCall struct {
	Path string
	Opts PortOptions
}

// NewMockOpener returns a MockOpener that opens port.
func NewMockOpener(port Porter) *MockOpener {
	return &MockOpener{Port: port}
}

// Open implements Opener.
func (m *MockOpener) Open(path string, opts PortOptions) (Porter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockOpenCall{Path: path, Opts: opts})
	if m.Error != nil {
		return nil, m.Error
	}
	return m.Port, nil
}
