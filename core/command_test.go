package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kioskctl/protocol"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	var got protocol.Command
	registry.Register("TEST", func(_ context.Context, cmd protocol.Command) error {
		got = cmd
		return nil
	})

	_, ok := registry.Lookup("TEST")
	assert.True(t, ok)
	assert.Equal(t, 1, registry.Count())

	cmd := protocol.NewCommand("TEST", protocol.F("A", "1"))
	require.NoError(t, registry.Dispatch(context.Background(), cmd))
	assert.Equal(t, cmd, got)

	err := registry.Dispatch(context.Background(), protocol.NewCommand("NOPE"))
	require.ErrorIs(t, err, ErrUnhandledCommand)
}

func TestCommandRegistryReplace(t *testing.T) {
	registry := NewCommandRegistry()
	first := errors.New("first")
	second := errors.New("second")

	registry.Register("X", func(context.Context, protocol.Command) error { return first })
	registry.Register("X", func(context.Context, protocol.Command) error { return second })

	assert.Equal(t, 1, registry.Count())
	assert.ErrorIs(t, registry.Dispatch(context.Background(), protocol.NewCommand("X")), second)
}

func TestCommandRegistryNames(t *testing.T) {
	registry := NewCommandRegistry()
	for _, name := range []string{"REQ_SYNC", "ALARM", "REPORT"} {
		registry.Register(name, func(context.Context, protocol.Command) error { return nil })
	}
	assert.Equal(t, []string{"ALARM", "REPORT", "REQ_SYNC"}, registry.Names())
}
