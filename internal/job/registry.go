package job

import (
	"fmt"
	"sync"
)

// Registry maps job names to handler functions. It is populated at process
// start; resolving an unregistered name fails fast with ErrUnknownJob rather
// than failing at execution time.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Func
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Func),
	}
}

// Register binds a handler to a job name. Registering the same name twice
// panics: it is a wiring bug, not a runtime condition.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("job handler %q registered twice", name))
	}
	r.handlers[name] = fn
}

// Resolve returns the handler for a job name, or ErrUnknownJob.
func (r *Registry) Resolve(name string) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	return fn, nil
}

// Names returns the registered job names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}
