package records

import (
	"fmt"
	"sort"
	"sync"
)

// Object is a decodable top level object materialized from a key payload
type Object interface {
	Decoder
	ClassName() string
}

// Factory returns a new, empty, object ready to decode
type Factory func() Object

// ClassRegistry maps class names, as stored in keys, to object factories. It
// is open: callers register the classes they can decode. A registry is safe
// for concurrent use.
type ClassRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewClassRegistry returns a registry holding the default classes, currently
// only the tree metadata record.
func NewClassRegistry() *ClassRegistry {
	r := &ClassRegistry{factories: make(map[string]Factory)}
	r.factories[TreeClassName] = NewTree
	return r
}

// Register adds or replaces the factory for className
func (r *ClassRegistry) Register(className string, factory Factory) error {
	if className == "" {
		return ErrInvalidClassName
	}
	if factory == nil {
		return fmt.Errorf("%w: %s", ErrNilFactory, className)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[className] = factory
	return nil
}

// New returns an empty object for className
func (r *ClassRegistry) New(className string) (Object, error) {
	r.mu.RLock()
	factory, ok := r.factories[className]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregisteredClass, className)
	}
	return factory(), nil
}

func (r *ClassRegistry) Has(className string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[className]
	return ok
}

// Classes returns the registered class names, sorted
func (r *ClassRegistry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
