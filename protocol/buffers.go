package protocol

import (
	"bytes"
	"strings"
)

// LineBuffer assembles serial input into newline-terminated lines.
// Incomplete input stays buffered across writes. A line growing past the
// capacity is discarded up to its terminator.
type LineBuffer struct {
	buf        []byte
	capacity   int
	discarding bool
}

// NewLineBuffer creates a LineBuffer holding at most capacity bytes of one line
func NewLineBuffer(capacity int) *LineBuffer {
	return &LineBuffer{
		buf:      make([]byte, 0, 256),
		capacity: capacity,
	}
}

// Write appends data and returns how many over-long lines were dropped
func (b *LineBuffer) Write(data []byte) (dropped int) {
	for len(data) > 0 {
		if b.discarding {
			idx := bytes.IndexByte(data, LineTerminator)
			if idx < 0 {
				return dropped
			}
			b.discarding = false
			data = data[idx+1:]
			continue
		}

		idx := bytes.IndexByte(data, LineTerminator)
		chunk := data
		if idx >= 0 {
			chunk = data[:idx+1]
		}
		lineStart := bytes.LastIndexByte(b.buf, LineTerminator) + 1
		partial := len(b.buf) - lineStart + len(chunk)
		if idx >= 0 {
			partial--
		}
		if partial > b.capacity {
			b.buf = b.buf[:lineStart]
			dropped++
			if idx < 0 {
				b.discarding = true
				return dropped
			}
			data = data[idx+1:]
			continue
		}
		b.buf = append(b.buf, chunk...)
		data = data[len(chunk):]
	}
	return dropped
}

// Next pops the oldest complete line, without its terminator.
// Invalid UTF-8 is removed from the returned text.
func (b *LineBuffer) Next() (string, bool) {
	idx := bytes.IndexByte(b.buf, LineTerminator)
	if idx < 0 {
		return "", false
	}
	line := strings.TrimRight(string(b.buf[:idx]), "\r")
	n := copy(b.buf, b.buf[idx+1:])
	b.buf = b.buf[:n]
	return strings.ToValidUTF8(line, ""), true
}

// Available returns the number of buffered bytes
func (b *LineBuffer) Available() int {
	return len(b.buf)
}

// Reset clears the buffer
func (b *LineBuffer) Reset() {
	b.buf = b.buf[:0]
	b.discarding = false
}
