// Package model normalizes raw extracted declarations into a closed
// entity graph. Every type reference in the graph resolves to another
// entity, a primitive, or an explicit opaque marker; later phases hold
// entity IDs, never structural pointers.
package model

import "strings"

// QualifiedName is a namespace path plus an identifier, e.g.
// {["zoo","sounds"], "Baa"} for "zoo::sounds::Baa". Nested types keep
// their enclosing type in the namespace path; by the time names reach
// the model the distinction no longer matters.
type QualifiedName struct {
	Namespace []string `json:"namespace,omitempty"`
	Name      string   `json:"name"`
}

// ParseQualifiedName splits a C++-style qualified name on "::".
func ParseQualifiedName(s string) QualifiedName {
	s = strings.TrimPrefix(s, "::")
	parts := strings.Split(s, "::")
	if len(parts) == 1 {
		return QualifiedName{Name: parts[0]}
	}
	return QualifiedName{Namespace: parts[:len(parts)-1], Name: parts[len(parts)-1]}
}

// String renders the name C++-style.
func (q QualifiedName) String() string {
	if len(q.Namespace) == 0 {
		return q.Name
	}
	return strings.Join(q.Namespace, "::") + "::" + q.Name
}

// Flat joins every component with the given separator, producing the
// fully-qualified flat identifier used when namespaced names collide.
func (q QualifiedName) Flat(sep string) string {
	if len(q.Namespace) == 0 {
		return q.Name
	}
	return strings.Join(q.Namespace, sep) + sep + q.Name
}

// InNamespace reports whether the name sits inside ns (as a strict
// prefix of its namespace path).
func (q QualifiedName) InNamespace(ns string) bool {
	if ns == "" {
		return true
	}
	want := strings.Split(ns, "::")
	if len(q.Namespace) < len(want) {
		return false
	}
	for i, part := range want {
		if q.Namespace[i] != part {
			return false
		}
	}
	return true
}

// Empty reports whether this is the zero name.
func (q QualifiedName) Empty() bool {
	return q.Name == "" && len(q.Namespace) == 0
}
