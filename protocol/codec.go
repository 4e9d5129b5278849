package protocol

import (
	"strings"
)

// Field is one KEY:VALUE pair of a command line
type Field struct {
	Key   string
	Value string
}

// F builds a Field
func F(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Command is a decoded protocol line.
// Name is the CMD value and is never empty; Fields holds the remaining
// pairs in wire order.
type Command struct {
	Name   string
	Fields []Field
}

// NewCommand builds a command from its name and ordered fields
func NewCommand(name string, fields ...Field) Command {
	return Command{Name: name, Fields: fields}
}

// Get returns the first value stored under key
func (c Command) Get(key string) (string, bool) {
	for _, f := range c.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// GetOr returns the value stored under key, or def when absent
func (c Command) GetOr(key, def string) string {
	if v, ok := c.Get(key); ok {
		return v
	}
	return def
}

// String returns the line without its terminator
func (c Command) String() string {
	return strings.TrimSuffix(string(Encode(c)), string(LineTerminator))
}

func (c Command) encodedLen() int {
	n := len(FieldCommand) + 1 + len(c.Name) + 1
	for _, f := range c.Fields {
		n += 1 + len(f.Key) + 1 + len(f.Value)
	}
	return n
}

// Encode renders c as "CMD:<name>,<k1>:<v1>,...\n".
// Values are written verbatim; see UnsafeValue.
func Encode(c Command) []byte {
	buf := make([]byte, 0, c.encodedLen())
	buf = append(buf, FieldCommand...)
	buf = append(buf, PairSeparator)
	buf = append(buf, c.Name...)
	for _, f := range c.Fields {
		buf = append(buf, FieldSeparator)
		buf = append(buf, f.Key...)
		buf = append(buf, PairSeparator)
		buf = append(buf, f.Value...)
	}
	return append(buf, LineTerminator)
}

// Decode parses one line (with or without its terminator).
// Segments without ':' are dropped; the key is split at the first ':'.
// Lines without a non-empty CMD pair return ErrNotACommand.
func Decode(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, ErrNotACommand
	}

	var (
		cmd     Command
		hasName bool
	)
	for _, segment := range strings.Split(line, string(FieldSeparator)) {
		key, value, ok := strings.Cut(segment, string(PairSeparator))
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		if key == FieldCommand && !hasName {
			cmd.Name = value
			hasName = true
			continue
		}
		cmd.Fields = append(cmd.Fields, Field{Key: key, Value: value})
	}

	if !hasName || cmd.Name == "" {
		return Command{}, ErrNotACommand
	}
	return cmd, nil
}

// UnsafeValue reports whether v contains a character the line format cannot
// carry unescaped.
func UnsafeValue(v string) bool {
	return strings.ContainsAny(v, ",:\r\n")
}
