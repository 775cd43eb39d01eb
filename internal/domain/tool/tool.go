// Package tool defines callable tools exposed to the chat model and the
// registry that dispatches their execution.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tokentab-io/tokentab/internal/domain"
)

// Tool is a named operation the model can invoke with JSON arguments.
// Parameters describes the argument object as JSON Schema.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry holds registered tools keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Duplicate names are rejected.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if _, ok := r.tools[name]; ok {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// MustRegister registers a tool or panics. For static built-in wiring.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)
	}
	return t, nil
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Specs returns provider-facing tool descriptions in registration order.
func (r *Registry) Specs() []domain.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]domain.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, domain.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return specs
}

// Execute dispatches a call to the named tool. Execution failures wrap
// domain.ErrToolFailed; unknown names wrap domain.ErrToolNotFound.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, err := r.Get(name)
	if err != nil {
		return "", err
	}
	out, err := t.Call(ctx, args)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrToolFailed, name, err)
	}
	return out, nil
}

// Builtins returns a registry with the standard demo tools.
func Builtins() *Registry {
	r := NewRegistry()
	r.MustRegister(NewCalculator())
	r.MustRegister(NewTemperatureConverter())
	r.MustRegister(NewWeather())
	return r
}
