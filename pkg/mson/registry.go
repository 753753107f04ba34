// Package mson decodes tagged dictionaries back into concrete Go values.
//
// A tagged dictionary carries the originating module and class under the
// reserved "@module" and "@class" keys. Decoding is explicit: callers hold a
// Registry and ask it to decode, nothing happens on read.
package mson

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

const (
	ModuleKey = "@module"
	ClassKey  = "@class"
)

var (
	// ErrMissingTypeTag is returned when a dictionary lacks @module or @class.
	ErrMissingTypeTag = errors.New("mson: missing type tag")

	// ErrUnregisteredType is returned when no decoder is registered for a tag.
	ErrUnregisteredType = errors.New("mson: unregistered type")
)

// TypeTagError reports which reserved key is missing or malformed.
type TypeTagError struct {
	Key string
}

func (e *TypeTagError) Error() string {
	return fmt.Sprintf("mson: dictionary has no usable %q key", e.Key)
}

func (e *TypeTagError) Unwrap() error { return ErrMissingTypeTag }

// UnregisteredTypeError names the tag nobody registered a decoder for.
type UnregisteredTypeError struct {
	Module string
	Class  string
}

func (e *UnregisteredTypeError) Error() string {
	return fmt.Sprintf("mson: no decoder registered for %s", Tag(e.Module, e.Class))
}

func (e *UnregisteredTypeError) Unwrap() error { return ErrUnregisteredType }

// DecodeFunc builds a value from a tagged dictionary. The registry is passed
// so decoders can resolve nested tagged values.
type DecodeFunc func(d map[string]any, reg *Registry) (any, error)

// Registry maps type tags to decoders.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]DecodeFunc
}

func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]DecodeFunc)}
}

// Tag joins module and class into the registry key.
func Tag(module, class string) string {
	return module + "." + class
}

// Register installs fn for module/class, replacing any previous decoder.
func (r *Registry) Register(module, class string, fn DecodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[Tag(module, class)] = fn
}

// Registered returns the registered tags in sorted order.
func (r *Registry) Registered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.decoders))
	for tag := range r.decoders {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// TypeOf extracts the type tag of d.
func TypeOf(d map[string]any) (module, class string, err error) {
	module, ok := d[ModuleKey].(string)
	if !ok || module == "" {
		return "", "", &TypeTagError{Key: ModuleKey}
	}
	class, ok = d[ClassKey].(string)
	if !ok || class == "" {
		return "", "", &TypeTagError{Key: ClassKey}
	}
	return module, class, nil
}

// Decode turns a tagged dictionary into the value its decoder builds.
// Untagged input is an error, never a plain mapping.
func (r *Registry) Decode(d map[string]any) (any, error) {
	module, class, err := TypeOf(d)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	fn, ok := r.decoders[Tag(module, class)]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnregisteredTypeError{Module: module, Class: class}
	}
	v, err := fn(d, r)
	if err != nil {
		return nil, fmt.Errorf("mson: decode %s: %w", Tag(module, class), err)
	}
	return v, nil
}

// Process walks v and decodes every nested dictionary whose tag is
// registered. Untagged or unknown dictionaries are kept as they are.
func (r *Registry) Process(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		if _, _, err := TypeOf(t); err == nil {
			out, err := r.Decode(t)
			if err == nil {
				return out, nil
			}
			if !errors.Is(err, ErrUnregisteredType) {
				return nil, err
			}
		}
		out := make(map[string]any, len(t))
		for k, item := range t {
			pv, err := r.Process(item)
			if err != nil {
				return nil, err
			}
			out[k] = pv
		}
		return out, nil
	case Dict:
		return r.Process(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			pv, err := r.Process(item)
			if err != nil {
				return nil, err
			}
			out[i] = pv
		}
		return out, nil
	default:
		return v, nil
	}
}
