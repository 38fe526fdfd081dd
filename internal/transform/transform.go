// Package transform provides the named frame pre-processing methods applied
// before decoding, and the upscaling step used to help the decoder with small
// codes.
package transform

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

// Built-in method names.
const (
	Identity  = "identity"
	Grayscale = "grayscale"
	Invert    = "invert"
	Contrast  = "contrast"
	Sharpen   = "sharpen"
)

// ErrUnknownMethod is returned when a method name is not registered.
var ErrUnknownMethod = errors.New("unknown transform method")

// Func maps a frame to a new frame. Implementations must not modify their input.
type Func func(image.Image) image.Image

// Method is a named, pure frame transform. The name tags detections produced
// from frames pre-processed with it.
type Method struct {
	Name  string
	Apply Func
}

// Registry is an ordered set of methods. Iteration order is registration order.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	methods map[string]Method
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]Method)}
}

// DefaultRegistry returns a registry holding the built-in methods.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, m := range builtins() {
		_ = r.Register(m)
	}
	return r
}

func builtins() []Method {
	return []Method{
		{Name: Identity, Apply: func(img image.Image) image.Image { return img }},
		{Name: Grayscale, Apply: func(img image.Image) image.Image { return imaging.Grayscale(img) }},
		{Name: Invert, Apply: func(img image.Image) image.Image { return imaging.Invert(img) }},
		{Name: Contrast, Apply: func(img image.Image) image.Image { return imaging.AdjustContrast(img, 40) }},
		{Name: Sharpen, Apply: func(img image.Image) image.Image { return imaging.Sharpen(img, 1.0) }},
	}
}

// Register adds a method. Names are case-insensitive and must be unique.
func (r *Registry) Register(m Method) error {
	name := normalize(m.Name)
	if name == "" {
		return errors.New("transform method name is empty")
	}
	if m.Apply == nil {
		return fmt.Errorf("transform method %q has no function", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.methods[name]; exists {
		return fmt.Errorf("transform method %q already registered", name)
	}
	m.Name = name
	r.methods[name] = m
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the method registered under name.
func (r *Registry) Lookup(name string) (Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.methods[normalize(name)]
	return m, ok
}

// Names lists registered method names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Methods returns all registered methods in registration order.
func (r *Registry) Methods() []Method {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Method, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.methods[n])
	}
	return out
}

// Resolve looks up each name and returns the methods ordered by registration
// order, independent of the order given. Duplicate names are collapsed.
func (r *Registry) Resolve(names []string) ([]Method, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := make(map[string]bool, len(names))
	var unknown []string
	for _, n := range names {
		key := normalize(n)
		if _, ok := r.methods[key]; !ok {
			unknown = append(unknown, n)
			continue
		}
		want[key] = true
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownMethod,
			strings.Join(unknown, ", "), strings.Join(r.order, ", "))
	}

	out := make([]Method, 0, len(want))
	for _, n := range r.order {
		if want[n] {
			out = append(out, r.methods[n])
		}
	}
	return out, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
