package lifecycle

import (
	"fmt"
	"sync"
)

// Registry maps CloudFormation resource type names to their handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a resource type name to a handler, replacing any previous
// binding.
func (r *Registry) Register(resourceType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[resourceType] = h
}

// Get returns the handler registered for the resource type.
func (r *Registry) Get(resourceType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[resourceType]
	if !ok {
		return nil, fmt.Errorf("no handler registered for resource type %q", resourceType)
	}
	return h, nil
}
