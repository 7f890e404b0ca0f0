package notify

import (
	"fmt"
	"sync"
)

// Registry holds the configured notifiers by name, in registration order.
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	order     []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{notifiers: make(map[string]Notifier)}
}

// Register adds n under n.Name().
// It returns an error for a nil notifier, an empty name or a duplicate name.
func (r *Registry) Register(n Notifier) error {
	if n == nil {
		return fmt.Errorf("cannot register nil notifier")
	}

	name := n.Name()
	if name == "" {
		return fmt.Errorf("notifier name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.notifiers[name]; exists {
		return fmt.Errorf("notifier '%s' is already registered", name)
	}

	r.notifiers[name] = n
	r.order = append(r.order, name)
	return nil
}

// Unregister removes the notifier registered under name.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.notifiers[name]; !exists {
		return fmt.Errorf("notifier '%s' is not registered", name)
	}

	delete(r.notifiers, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the notifier registered under name, or nil.
func (r *Registry) Get(name string) Notifier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.notifiers[name]
}

// List returns the registered names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// IsRegistered reports whether name is registered.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.notifiers[name]
	return exists
}

// Multi returns a fan-out over every registered notifier.
func (r *Registry) Multi() *Multi {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ns := make([]Notifier, 0, len(r.order))
	for _, name := range r.order {
		ns = append(ns, r.notifiers[name])
	}
	return NewMulti(ns...)
}
