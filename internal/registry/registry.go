// Package registry holds the tool catalog shared by every transport binding.
package registry

import (
	"context"
	"errors"
	"sync"
)

// ErrInvalidToolName is returned when a tool is registered without a name.
var ErrInvalidToolName = errors.New("invalid tool name")

// ErrToolNotFound is returned by Lookup when no tool has the requested name.
var ErrToolNotFound = errors.New("tool not found")

// Handler executes one tool invocation. Every handler is awaited the same way
// whether it returns immediately or blocks on outbound I/O.
type Handler interface {
	Call(ctx context.Context, args Args) (any, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, args Args) (any, error)

// Call implements Handler.
func (f HandlerFunc) Call(ctx context.Context, args Args) (any, error) { return f(ctx, args) }

// Registrar is the write side of a registry. Tool packages depend only on it.
type Registrar interface {
	Register(name string, h Handler, description string) error
}

// Descriptor is a registered tool.
type Descriptor struct {
	Name        string
	Description string
	Handler     Handler
}

// Entry is one catalog line: a tool name and its description.
type Entry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry maps tool names to descriptors and remembers registration order.
// It is safe for concurrent use; registration normally happens once at startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Descriptor
	order []string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{tools: make(map[string]Descriptor)}
}

// Register adds a tool or replaces an existing one with the same name. A
// replaced tool keeps its original catalog position.
func (r *Registry) Register(name string, h Handler, description string) error {
	if name == "" {
		return ErrInvalidToolName
	}
	if h == nil {
		return errors.New("registry: nil handler for tool " + name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = Descriptor{Name: name, Description: description, Handler: h}
	return nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	r.mu.RLock()
	d, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Descriptor{}, ErrToolNotFound
	}
	return d, nil
}

// Has reports whether a tool named name is registered.
func (r *Registry) Has(name string) bool {
	_, err := r.Lookup(name)
	return err == nil
}

// List returns the catalog in registration order.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, Entry{Name: name, Description: r.tools[name].Description})
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	n := len(r.order)
	r.mu.RUnlock()
	return n
}
