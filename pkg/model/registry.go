package model

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// ErrUnknownType is matched by every failed registry lookup.
var ErrUnknownType = errors.New("model: unknown type")

// UnknownTypeError reports a name absent from the registry.
type UnknownTypeError struct {
	Name  string
	Known []string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("model: unknown type %q (known: %s)", e.Name, strings.Join(e.Known, ", "))
}

// Is makes errors.Is(err, ErrUnknownType) hold.
func (e *UnknownTypeError) Is(target error) bool { return target == ErrUnknownType }

// Factory constructs a model. Factories must not touch the filesystem.
type Factory func(opts Options) (Model, error)

// Entry pairs a variant name with its factory.
type Entry struct {
	Name        string
	Description string
	New         Factory
}

// Registry is a fixed set of model variants.
type Registry struct {
	entries map[string]Entry
}

// NewRegistry builds a registry. Later entries replace earlier ones with
// the same name.
func NewRegistry(entries ...Entry) *Registry {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		r.entries[e.Name] = e
	}
	return r
}

// Names returns the registered variant names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Entries returns the registered entries sorted by name.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, n := range r.Names() {
		out = append(out, r.entries[n])
	}
	return out
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (Entry, error) {
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, &UnknownTypeError{Name: name, Known: r.Names()}
	}
	return e, nil
}

// New constructs the variant registered under name.
func (r *Registry) New(name string, opts Options) (Model, error) {
	e, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	if opts.Device == "" {
		opts.Device = "cpu"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Logger = opts.Logger.With("model", name)
	m, err := e.New(opts)
	if err != nil {
		return nil, fmt.Errorf("model: new %s: %w", name, err)
	}
	return m, nil
}
