package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"kioskctl/protocol"
)

// CommandHandler handles one decoded device command.
// The handler is responsible for extracting its own fields.
type CommandHandler func(ctx context.Context, cmd protocol.Command) error

// CommandRegistry maps command names to handlers
type CommandRegistry struct {
	mu       sync.RWMutex
	handlers map[string]CommandHandler
}

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		handlers: make(map[string]CommandHandler),
	}
}

// Register adds or replaces the handler for name
func (r *CommandRegistry) Register(name string, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// Lookup returns the handler for name
func (r *CommandRegistry) Lookup(name string) (CommandHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered command names, sorted
func (r *CommandRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Dispatch calls the handler registered for cmd.Name
func (r *CommandRegistry) Dispatch(ctx context.Context, cmd protocol.Command) error {
	h, ok := r.Lookup(cmd.Name)
	if !ok || h == nil {
		return fmt.Errorf("%w: %s", ErrUnhandledCommand, cmd.Name)
	}
	return h(ctx, cmd)
}
