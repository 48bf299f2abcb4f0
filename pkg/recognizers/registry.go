package recognizers

import (
	"fmt"
	"sort"
	"strings"
)

// Registry maps engine names to recognizers. Names are case insensitive.
type Registry struct {
	recognizers map[string]Recognizer
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		recognizers: make(map[string]Recognizer),
	}
}

// Register adds a recognizer, replacing any with the same name
func (r *Registry) Register(recognizer Recognizer) {
	r.recognizers[strings.ToLower(recognizer.Name())] = recognizer
}

// Get retrieves a recognizer by name
func (r *Registry) Get(name string) (Recognizer, error) {
	recognizer, exists := r.recognizers[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("engine %s not found (available: %s)", name, strings.Join(r.List(), ", "))
	}
	return recognizer, nil
}

// List returns the registered names in sorted order
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.recognizers))
	for name := range r.recognizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has checks if a recognizer is registered
func (r *Registry) Has(name string) bool {
	_, exists := r.recognizers[strings.ToLower(name)]
	return exists
}
