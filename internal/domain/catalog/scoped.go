package catalog

import "strings"

// Scope says which table a scoped lookup was answered from.
type Scope string

// Scope values.
const (
	ScopeClass  Scope = "class"
	ScopeGlobal Scope = "global"
)

// Scoped resolves a per-property value where a per-class entry overrides the
// global one. Property names match case-insensitively; class names exactly.
// A Scoped is immutable once built.
type Scoped[T any] struct {
	global  map[string]T
	classes map[string]map[string]T
}

// NewScoped builds a lookup from global and per-class tables. The maps are copied.
func NewScoped[T any](global map[string]T, classes map[string]map[string]T) Scoped[T] {
	s := Scoped[T]{
		global:  make(map[string]T, len(global)),
		classes: make(map[string]map[string]T, len(classes)),
	}
	for name, v := range global {
		s.global[key(name)] = v
	}
	for class, props := range classes {
		m := make(map[string]T, len(props))
		for name, v := range props {
			m[key(name)] = v
		}
		s.classes[class] = m
	}
	return s
}

// Lookup returns the value for (class, name), the per-class entry first.
func (s Scoped[T]) Lookup(class, name string) (T, Scope, bool) {
	k := key(name)
	if props, ok := s.classes[class]; ok {
		if v, ok := props[k]; ok {
			return v, ScopeClass, true
		}
	}
	if v, ok := s.global[k]; ok {
		return v, ScopeGlobal, true
	}
	var zero T
	return zero, "", false
}

// Class returns a copy of the per-class entries of class, keyed by lowercased name.
func (s Scoped[T]) Class(class string) map[string]T {
	out := make(map[string]T, len(s.classes[class]))
	for k, v := range s.classes[class] {
		out[k] = v
	}
	return out
}

// Global returns a copy of the global entries, keyed by lowercased name.
func (s Scoped[T]) Global() map[string]T {
	out := make(map[string]T, len(s.global))
	for k, v := range s.global {
		out[k] = v
	}
	return out
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
