package serial

import (
	"bytes"
	"strings"
	"sync"
	"time"
)

// MockPort is an in-memory Port standing in for the kiosk device in tests.
// Bytes fed with Feed are returned by Read; bytes written by the host are
// recorded and split into lines for inspection.
type MockPort struct {
	mu        sync.Mutex
	inbound   chan []byte
	pending   []byte
	written   bytes.Buffer
	partial   []byte
	lines     []string
	readErrs  []error
	writeErr  error
	onLine    func(line string)
	resets    int
	timeout   time.Duration
	closed    chan struct{}
	closeOnce sync.Once
}

// NewMockPort creates a mock whose reads time out after a short poll
func NewMockPort() *MockPort {
	return &MockPort{
		inbound: make(chan []byte, 64),
		timeout: 20 * time.Millisecond,
		closed:  make(chan struct{}),
	}
}

// Opener returns an open function handing out this port
func (m *MockPort) Opener() func(*Config) (Port, error) {
	return func(*Config) (Port, error) {
		return m, nil
	}
}

// Feed queues raw device output
func (m *MockPort) Feed(data string) {
	select {
	case m.inbound <- []byte(data):
	case <-m.closed:
	}
}

// FeedLine queues one newline-terminated device line
func (m *MockPort) FeedLine(line string) {
	m.Feed(line + "\n")
}

// FailNextRead makes the next Read return err
func (m *MockPort) FailNextRead(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErrs = append(m.readErrs, err)
}

// FailWrites makes every Write return err (nil restores normal writes)
func (m *MockPort) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// OnLine registers a callback run for every complete line the host writes.
// It runs on the writer's goroutine, after the write has been recorded.
func (m *MockPort) OnLine(fn func(line string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLine = fn
}

// Lines returns the complete lines written so far, without terminators
func (m *MockPort) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}

// Written returns every byte written so far
func (m *MockPort) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written.String()
}

// Resets returns how often ResetInputBuffer was called
func (m *MockPort) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// IsClosed reports whether Close has been called
func (m *MockPort) IsClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

func (m *MockPort) Read(b []byte) (int, error) {
	m.mu.Lock()
	if len(m.readErrs) > 0 {
		err := m.readErrs[0]
		m.readErrs = m.readErrs[1:]
		m.mu.Unlock()
		return 0, err
	}
	if len(m.pending) > 0 {
		n := copy(b, m.pending)
		m.pending = m.pending[n:]
		m.mu.Unlock()
		return n, nil
	}
	m.mu.Unlock()

	select {
	case <-m.closed:
		return 0, ErrPortClosed
	case data := <-m.inbound:
		m.mu.Lock()
		n := copy(b, data)
		m.pending = append(m.pending, data[n:]...)
		m.mu.Unlock()
		return n, nil
	case <-time.After(m.timeout):
		return 0, nil
	}
}

func (m *MockPort) Write(b []byte) (int, error) {
	if m.IsClosed() {
		return 0, ErrPortClosed
	}

	m.mu.Lock()
	if m.writeErr != nil {
		err := m.writeErr
		m.mu.Unlock()
		return 0, err
	}
	m.written.Write(b)
	m.partial = append(m.partial, b...)
	var complete []string
	for {
		idx := bytes.IndexByte(m.partial, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimRight(string(m.partial[:idx]), "\r")
		m.partial = m.partial[idx+1:]
		m.lines = append(m.lines, line)
		complete = append(complete, line)
	}
	hook := m.onLine
	m.mu.Unlock()

	if hook != nil {
		for _, line := range complete {
			hook(line)
		}
	}
	return len(b), nil
}

func (m *MockPort) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *MockPort) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	m.pending = nil
	for {
		select {
		case <-m.inbound:
		default:
			return nil
		}
	}
}
